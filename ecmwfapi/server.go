package ecmwfapi

import (
	"context"
	"net/http"

	"github.com/ecmwf/ecmwf-api-client/internal/config"
	"github.com/ecmwf/ecmwf-api-client/internal/core/api"
	"github.com/ecmwf/ecmwf-api-client/internal/core/logsink"
)

// DataServer retrieves public datasets. The request must carry a dataset
// field naming the archive and a target field naming the local destination.
type DataServer struct {
	eng *engine
}

// NewDataServer builds a DataServer. A zero Credentials value resolves them
// from the environment and rc files; pass an explicit triple to skip that.
func NewDataServer(creds Credentials, opts ...Option) (*DataServer, error) {
	creds, err := resolveIfEmpty(creds)
	if err != nil {
		return nil, err
	}
	eng, err := newEngine(creds, opts)
	if err != nil {
		return nil, err
	}
	return &DataServer{eng: eng}, nil
}

// Retrieve submits the request, waits for the job to complete, downloads
// the artifact to the request's target and returns that path. It blocks
// until then; cancel through ctx.
func (s *DataServer) Retrieve(ctx context.Context, b RequestBuilder) (string, error) {
	req, err := b.BuildRequest()
	if err != nil {
		return "", err
	}
	dataset := req.Get("dataset")
	if dataset == "" {
		return "", &SubmissionError{Message: "no dataset given"}
	}
	return s.eng.run(ctx, "datasets/"+dataset, req, req.Get("target"))
}

// Service executes requests against a member-state service such as mars.
type Service struct {
	eng  *engine
	name string
}

func NewService(name string, creds Credentials, opts ...Option) (*Service, error) {
	creds, err := resolveIfEmpty(creds)
	if err != nil {
		return nil, err
	}
	eng, err := newEngine(creds, opts)
	if err != nil {
		return nil, err
	}
	return &Service{eng: eng, name: name}, nil
}

// Execute submits the request to the service and downloads the result to
// target. The request body is forwarded verbatim; target is only the local
// destination and is not injected into it.
func (s *Service) Execute(ctx context.Context, b RequestBuilder, target string) (string, error) {
	return s.eng.run(ctx, "services/"+s.name, b, target)
}

func resolveIfEmpty(creds Credentials) (Credentials, error) {
	if creds.URL != "" && creds.Key != "" && creds.Email != "" {
		return creds, nil
	}
	return ResolveCredentials()
}

// Identity describes the account a credential triple maps to.
type Identity struct {
	UID      string
	FullName string
	Email    string
}

// WhoAmI asks the service which account the credentials belong to.
func WhoAmI(ctx context.Context, creds Credentials) (Identity, error) {
	creds, err := resolveIfEmpty(creds)
	if err != nil {
		return Identity{}, err
	}
	settings, err := config.LoadSettings()
	if err != nil {
		return Identity{}, err
	}

	client := api.NewClient(creds, settings, logsink.Discard())
	resp, err := client.Call(ctx, http.MethodGet, client.Endpoint("who-am-i"), nil)
	if err != nil {
		return Identity{}, err
	}

	var id Identity
	id.UID, _ = resp.Body["uid"].(string)
	id.FullName, _ = resp.Body["full_name"].(string)
	id.Email, _ = resp.Body["email"].(string)
	return id, nil
}

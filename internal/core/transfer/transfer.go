package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/ecmwf/ecmwf-api-client/internal/core/api"
	"github.com/ecmwf/ecmwf-api-client/internal/core/job"
	"github.com/ecmwf/ecmwf-api-client/internal/core/logsink"
)

// IncompleteError reports a byte-count mismatch after streaming: the file on
// disk does not hold as many bytes as the service said the artifact has.
// The job's offset is advanced before this is returned, so the caller can
// retry the download and it will resume rather than start over.
type IncompleteError struct {
	Written  int64
	Expected int64
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("download incomplete: %d of %d bytes", e.Written, e.Expected)
}

// Retriever streams a completed job's artifact to local disk. Artifacts are
// routinely multi-gigabyte grid files, so the body is never buffered whole.
type Retriever struct {
	client *api.Client
	sink   logsink.Sink
}

func NewRetriever(client *api.Client, sink logsink.Sink) *Retriever {
	if sink == nil {
		sink = logsink.Discard()
	}
	return &Retriever{client: client, sink: sink}
}

// Download streams the job's result to dest and returns the total bytes now
// on disk. When j.Offset is positive the destination is appended to and a
// ranged request resumes from that offset; nothing retries automatically, a
// truncated transfer comes back as an IncompleteError and resuming is the
// caller's decision.
func (r *Retriever) Download(ctx context.Context, j *job.Job, dest string) (int64, error) {
	if j.Result == nil || j.Result.Location == "" {
		return 0, fmt.Errorf("job %s has no result to download", j.ID)
	}

	from := j.Offset
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if from > 0 {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	body, _, err := r.client.Stream(ctx, j.Result.Location, from)
	if err != nil {
		return from, err
	}
	defer func() { _ = body.Close() }()

	f, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return from, fmt.Errorf("open %s: %w", dest, err)
	}

	r.sink.Emit(fmt.Sprintf("Transferring %s into %s",
		humanize.IBytes(uint64(max(j.Result.Size-from, 0))), dest))
	r.sink.Emit("From " + j.Result.Location)

	start := time.Now()
	written, copyErr := io.CopyBuffer(f, body, make([]byte, 1<<20))
	closeErr := f.Close()

	total := from + written
	j.Offset = total

	if copyErr != nil {
		if ctx.Err() != nil {
			return total, fmt.Errorf("download %s: %w", j.ID, ctx.Err())
		}
		return total, &api.TransportError{Transient: true, Err: fmt.Errorf("stream body: %w", copyErr)}
	}
	if closeErr != nil {
		return total, fmt.Errorf("close %s: %w", dest, closeErr)
	}

	if elapsed := time.Since(start); elapsed > 0 {
		rate := float64(written) / elapsed.Seconds()
		r.sink.Emit(fmt.Sprintf("Transfer rate %s/s", humanize.IBytes(uint64(rate))))
	}
	log.Debug().Str("job", j.ID).Int64("bytes", written).Str("dest", dest).Msg("transfer finished")

	if j.Result.Size > 0 && total != j.Result.Size {
		return total, &IncompleteError{Written: total, Expected: j.Result.Size}
	}
	return total, nil
}

package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// FilesystemOutput dumps raw request/response exchanges to a directory,
// one file per message. When a provider changes its markup the dumped
// pages are what an extraction failure gets diagnosed from.
type FilesystemOutput struct {
	directory string
	idcounter *uint64
}

func NewFilesystemOutput(dir string) FilesystemOutput {
	os.RemoveAll(dir)
	err := os.MkdirAll(dir, 0o777)
	if err != nil {
		panic(err)
	}
	var idcounter uint64
	return FilesystemOutput{directory: dir, idcounter: &idcounter}
}

func (o FilesystemOutput) write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0o600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}

// Attach registers an after-response hook that writes every exchange
// the client sees.
func (o FilesystemOutput) Attach(client *resty.Client) {
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := strconv.FormatUint(atomic.AddUint64(o.idcounter, 1), 10)
		o.write(id, fmt.Sprintf(
			"%s %s\nstatus: %s\n\n%s",
			res.Request.Method,
			res.Request.URL,
			res.Status(),
			res.String(),
		))
		return nil
	})
}

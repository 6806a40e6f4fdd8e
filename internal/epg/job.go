package epg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/snapetech/streamrefresh/internal/httpclient"
	"github.com/snapetech/streamrefresh/internal/output"
)

// Uploader stores the rewritten guide remotely.
type Uploader interface {
	Upload(ctx context.Context, dstPath string, data []byte) error
}

// Job downloads a guide, rewrites its ids and writes the guide and the
// name => id map. When Uploader is set the guide is also uploaded to
// RemotePath.
//
// With StatePath set, the source's validators are kept between runs and an
// unchanged guide (304, or the same content hash) is neither rewritten nor
// uploaded again. State is saved only after every step succeeded.
type Job struct {
	Req        *httpclient.Requester
	SourceURL  string
	Output     string
	MapFile    string // "" = skip
	Uploader   Uploader
	RemotePath string
	StatePath  string // "" = always download
	Force      bool   // ignore saved state
}

// Run executes the job. Any step failing stops it. An unchanged guide
// returns (nil, nil).
func (j *Job) Run(ctx context.Context) ([]Mapping, error) {
	prev := j.loadState()
	log.Printf("epg: downloading %s", j.SourceURL)
	raw, cur, err := j.Req.ConditionalGet(ctx, j.SourceURL, prev)
	if errors.Is(err, httpclient.ErrNotModified) {
		log.Printf("epg: %s not modified; keeping %s", j.SourceURL, j.Output)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("download guide: %w", err)
	}
	if prev.ContentHash != "" && prev.ContentHash == cur.ContentHash {
		log.Printf("epg: %s unchanged; keeping %s", j.SourceURL, j.Output)
		return nil, nil
	}
	var guide bytes.Buffer
	mappings, err := Rewrite(&guide, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("rewrite guide: %w", err)
	}
	if err := output.Write(j.Output, guide.String()); err != nil {
		return nil, err
	}
	log.Printf("epg: wrote %s (%d channels renamed)", j.Output, len(mappings))
	if j.MapFile != "" {
		var m bytes.Buffer
		if err := WriteMapping(&m, mappings); err != nil {
			return nil, err
		}
		if err := output.Write(j.MapFile, m.String()); err != nil {
			return nil, err
		}
		log.Printf("epg: wrote %s", j.MapFile)
	}
	if j.Uploader != nil {
		if err := j.Uploader.Upload(ctx, j.RemotePath, guide.Bytes()); err != nil {
			return mappings, fmt.Errorf("upload guide: %w", err)
		}
		log.Printf("epg: uploaded to %s", j.RemotePath)
	}
	if err := j.saveState(cur); err != nil {
		log.Printf("epg: save state: %v", err)
	}
	return mappings, nil
}

// loadState returns the saved validators, or none when state is disabled,
// forced off, unreadable, or the output it describes is gone.
func (j *Job) loadState() httpclient.Validators {
	var v httpclient.Validators
	if j.StatePath == "" || j.Force {
		return v
	}
	if _, err := os.Stat(j.Output); err != nil {
		return v
	}
	data, err := os.ReadFile(filepath.Clean(j.StatePath))
	if err != nil {
		return v
	}
	if err := json.Unmarshal(data, &v); err != nil {
		log.Printf("epg: ignoring state %s: %v", j.StatePath, err)
		return httpclient.Validators{}
	}
	return v
}

func (j *Job) saveState(v httpclient.Validators) error {
	if j.StatePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return output.Write(j.StatePath, string(data)+"\n")
}

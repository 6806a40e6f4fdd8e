package edge

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/snapetech/streamrefresh/internal/output"
)

// WorkerJob writes the aggregate playlist, patches the worker script and
// uploads it. A nil Deployer is a dry run.
type WorkerJob struct {
	Base         string // public base URL of the playlists, e.g. the Pages site
	Channels     []Channel
	Playlist     PlaylistOptions
	PlaylistPath string
	ScriptPath   string
	WorkerName   string
	Deployer     *Deployer
}

func (j *WorkerJob) Run(ctx context.Context) error {
	if err := output.Write(j.PlaylistPath, BuildPlaylist(j.Base, j.Channels, j.Playlist)); err != nil {
		return err
	}
	log.Printf("worker: wrote %s (%d channels)", j.PlaylistPath, len(j.Channels))

	script, err := os.ReadFile(filepath.Clean(j.ScriptPath))
	if err != nil {
		return fmt.Errorf("read worker script: %w", err)
	}
	patched, ok := PatchBaseURL(string(script), j.Base)
	if !ok {
		log.Printf("worker: %s has no BASE_URL constant; uploading unchanged", j.ScriptPath)
	}
	if j.Deployer == nil {
		log.Printf("worker: dry run, not uploading %s (%d bytes)", j.WorkerName, len(patched))
		return nil
	}
	log.Printf("worker: uploading %s", j.WorkerName)
	if err := j.Deployer.Deploy(ctx, j.WorkerName, []byte(patched)); err != nil {
		return err
	}
	log.Printf("worker: %s uploaded", j.WorkerName)
	return nil
}

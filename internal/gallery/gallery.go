// Package gallery builds a static review page for one or more runs: one row
// per (dataset, task, sample) with the prompt, the conditioning image, the
// ground-truth clip, and each model's generated video side by side. Media is
// symlinked under the gallery directory so the page stays self-contained and
// cheap to serve.
package gallery

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"vidsweep/internal/fileutil"
	"vidsweep/internal/logging"
	"vidsweep/internal/manifest"
	"vidsweep/internal/runs"
	"vidsweep/internal/services"
)

// Entry is one gallery row.
type Entry struct {
	Dataset  string
	Task     string
	SampleID string
	Prompt   string

	// Relative hrefs under the gallery directory, filled during Build.
	ImageHref       string
	GroundTruthHref string
	OutputHrefs     map[string]string

	imagePath       string
	groundTruthPath string
	outputPaths     map[string]string
}

// Builder collects entries and writes the gallery tree.
type Builder struct {
	RunRoots []string
	Models   []string
	Tasks    []runs.Task
	OutDir   string
	Logger   *slog.Logger
}

// Collect walks every run root's task manifests and merges samples across
// models. Later run roots win on prompt/media conflicts for the same key.
func (b *Builder) Collect() ([]Entry, error) {
	logger := logging.NewComponentLogger(b.Logger, "gallery")
	tasks := b.Tasks
	if len(tasks) == 0 {
		tasks = runs.Tasks()
	}

	entries := map[string]*Entry{}
	var order []string
	for _, root := range b.RunRoots {
		run := runs.New("", root)
		datasets, err := discoverDatasets(root, b.Models)
		if err != nil {
			return nil, err
		}
		for _, model := range b.Models {
			for _, dataset := range datasets {
				for _, task := range tasks {
					slice := runs.Slice{Model: model, Dataset: dataset, Task: task}
					rows, err := manifest.ReadTaskRows(run.TaskManifestPath(slice))
					if err != nil {
						if os.IsNotExist(err) {
							continue
						}
						return nil, err
					}
					for _, row := range rows {
						key := dataset + "/" + string(task) + "/" + row.SampleID
						entry, ok := entries[key]
						if !ok {
							entry = &Entry{
								Dataset:     dataset,
								Task:        string(task),
								SampleID:    row.SampleID,
								outputPaths: map[string]string{},
							}
							entries[key] = entry
							order = append(order, key)
						}
						if row.Prompt != "" {
							entry.Prompt = row.Prompt
						}
						if fileutil.NonEmptyFile(row.ImagePath) {
							entry.imagePath = row.ImagePath
						}
						if fileutil.NonEmptyFile(row.GroundTruthVideo) {
							entry.groundTruthPath = row.GroundTruthVideo
						}
						if fileutil.NonEmptyFile(row.OutputVideo) {
							entry.outputPaths[model] = row.OutputVideo
						}
					}
				}
			}
		}
	}

	sort.Strings(order)
	collected := make([]Entry, 0, len(order))
	for _, key := range order {
		collected = append(collected, *entries[key])
	}
	logger.Info("collected gallery entries",
		logging.Int("entries", len(collected)),
		logging.Int("run_roots", len(b.RunRoots)),
	)
	return collected, nil
}

// discoverDatasets lists dataset directories that exist under any model tree.
func discoverDatasets(root string, models []string) ([]string, error) {
	seen := map[string]struct{}{}
	var datasets []string
	for _, model := range models {
		entries, err := os.ReadDir(filepath.Join(root, model))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			if _, ok := seen[entry.Name()]; ok {
				continue
			}
			seen[entry.Name()] = struct{}{}
			datasets = append(datasets, entry.Name())
		}
	}
	sort.Strings(datasets)
	return datasets, nil
}

// Build symlinks every entry's media under OutDir/media and writes
// OutDir/index.html. It returns the index path.
func (b *Builder) Build(entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", services.Wrap(services.ErrValidation, "gallery", "build", "no entries collected", nil)
	}
	mediaDir := filepath.Join(b.OutDir, "media")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "gallery", "build", mediaDir, err)
	}

	for i := range entries {
		entry := &entries[i]
		entry.OutputHrefs = map[string]string{}
		base := fmt.Sprintf("%s_%s_%s", entry.Dataset, entry.Task, entry.SampleID)

		if entry.imagePath != "" {
			href, err := linkMedia(mediaDir, base+"_image"+filepath.Ext(entry.imagePath), entry.imagePath)
			if err != nil {
				return "", err
			}
			entry.ImageHref = href
		}
		if entry.groundTruthPath != "" {
			href, err := linkMedia(mediaDir, base+"_gt"+filepath.Ext(entry.groundTruthPath), entry.groundTruthPath)
			if err != nil {
				return "", err
			}
			entry.GroundTruthHref = href
		}
		for model, path := range entry.outputPaths {
			href, err := linkMedia(mediaDir, base+"_"+model+filepath.Ext(path), path)
			if err != nil {
				return "", err
			}
			entry.OutputHrefs[model] = href
		}
	}

	indexPath := filepath.Join(b.OutDir, "index.html")
	file, err := os.Create(indexPath)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "gallery", "build", indexPath, err)
	}
	defer file.Close()

	data := struct {
		Generated string
		Models    []string
		Entries   []Entry
	}{
		Generated: time.Now().UTC().Format(time.RFC3339),
		Models:    b.Models,
		Entries:   entries,
	}
	if err := indexTemplate.Execute(file, data); err != nil {
		return "", services.Wrap(services.ErrTransient, "gallery", "render index", indexPath, err)
	}
	return indexPath, nil
}

func linkMedia(mediaDir, name, src string) (string, error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(mediaDir, name)
	if err := fileutil.Materialize(abs, dst, fileutil.ModeSymlink); err != nil {
		return "", err
	}
	return "media/" + name, nil
}

// Serve exposes the built gallery directory over HTTP until the context is
// cancelled.
func Serve(ctx context.Context, dir, addr string, logger *slog.Logger) error {
	log := logging.NewComponentLogger(logger, "gallery")
	server := &http.Server{
		Addr:    addr,
		Handler: http.FileServer(http.Dir(dir)),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("gallery serving", logging.String("addr", addr), logging.String("dir", dir))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return services.Wrap(services.ErrTransient, "gallery", "serve", addr, err)
		}
		return nil
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>vidsweep gallery</title>
<style>
body{font-family:sans-serif;margin:16px;}
table{border-collapse:collapse;width:100%;font-size:13px;}
td,th{border:1px solid #ccc;padding:6px;vertical-align:top;}
video{max-width:280px;}
img{max-width:200px;}
.muted{color:#666;font-size:12px;}
</style>
</head>
<body>
<h1>vidsweep gallery</h1>
<p class="muted">generated {{.Generated}}</p>
<table>
<tr>
<th>dataset/task/sample</th>
<th>prompt + i2v image</th>
<th>ground truth</th>
{{range .Models}}<th>{{.}}</th>{{end}}
</tr>
{{range .Entries}}
<tr>
<td><b>{{.Dataset}}</b>/<b>{{.Task}}</b><br>{{.SampleID}}</td>
<td>{{.Prompt}}{{if .ImageHref}}<br><img src="{{.ImageHref}}">{{end}}</td>
<td>{{if .GroundTruthHref}}<video src="{{.GroundTruthHref}}" controls muted></video>{{else}}<span class="muted">missing</span>{{end}}</td>
{{$entry := .}}
{{range $.Models}}
<td>{{with index $entry.OutputHrefs .}}<video src="{{.}}" controls muted></video>{{else}}<span class="muted">missing</span>{{end}}</td>
{{end}}
</tr>
{{end}}
</table>
</body>
</html>
`))

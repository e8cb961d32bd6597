package layout

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"vidsweep/internal/fileutil"
	"vidsweep/internal/logging"
	"vidsweep/internal/manifest"
	"vidsweep/internal/runs"
	"vidsweep/internal/services"
)

var (
	perspectiveRe  = regexp.MustCompile(`_perspective-(left|center|right)_`)
	leadingIndexRe = regexp.MustCompile(`^\d+_`)
)

// SubsetOptions configures consistent manifest subsetting across an already
// prepared layout. Datasets that ship perspective triplets (left/center/right
// captures of the same scene) keep exactly one perspective per triplet.
type SubsetOptions struct {
	Run                   runs.Run
	Datasets              []string
	Models                []string
	Tasks                 []runs.Task
	MaxPerDataset         int
	PerspectivePreference []string
	ReferenceModel        string
	ReferenceTask         runs.Task
	BackupSuffix          string
	DryRun                bool
	Logger                *slog.Logger
}

// SubsetResult reports the selection and the manifests rewritten.
type SubsetResult struct {
	Selected map[string][]string
	Updated  []string
}

// Subset applies one selected sample-id set per dataset to every model/task
// manifest, so pending membership stays identical across slices. Originals
// are backed up once with BackupSuffix.
func Subset(opts SubsetOptions) (SubsetResult, error) {
	logger := logging.NewComponentLogger(opts.Logger, "layout-subset")

	if opts.MaxPerDataset <= 0 {
		opts.MaxPerDataset = 20
	}
	if len(opts.PerspectivePreference) == 0 {
		opts.PerspectivePreference = []string{"center", "left", "right"}
	}
	if opts.ReferenceModel == "" {
		opts.ReferenceModel = "wan22"
	}
	if opts.ReferenceTask == "" {
		opts.ReferenceTask = runs.TaskT2V
	}
	if opts.BackupSuffix == "" {
		opts.BackupSuffix = ".pre_subset.bak"
	}

	result := SubsetResult{Selected: map[string][]string{}}

	for _, dataset := range opts.Datasets {
		refSlice := runs.Slice{Model: opts.ReferenceModel, Dataset: dataset, Task: opts.ReferenceTask}
		refRows, err := manifest.ReadTaskRows(opts.Run.TaskManifestPath(refSlice))
		if err != nil {
			return SubsetResult{}, services.Wrap(services.ErrNotFound, "layout", "read reference manifest", refSlice.String(), err)
		}
		ordered := make([]string, 0, len(refRows))
		for _, row := range refRows {
			ordered = append(ordered, row.SampleID)
		}

		selected := selectIDs(ordered, opts.MaxPerDataset, opts.PerspectivePreference)
		result.Selected[dataset] = selected
		selectedSet := make(map[string]struct{}, len(selected))
		for _, id := range selected {
			selectedSet[id] = struct{}{}
		}

		logger.Info("selected subset",
			logging.String(logging.FieldDataset, dataset),
			logging.Int("selected", len(selected)),
			logging.Int("reference_rows", len(ordered)),
		)

		if opts.DryRun {
			continue
		}

		for _, model := range opts.Models {
			for _, task := range opts.Tasks {
				slice := runs.Slice{Model: model, Dataset: dataset, Task: task}
				path := opts.Run.TaskManifestPath(slice)
				rows, err := manifest.ReadTaskRows(path)
				if err != nil {
					if os.IsNotExist(err) {
						continue
					}
					return SubsetResult{}, err
				}

				kept := rows[:0]
				for _, row := range rows {
					if _, ok := selectedSet[row.SampleID]; ok {
						kept = append(kept, row)
					}
				}

				backup := path + opts.BackupSuffix
				if !fileutil.NonEmptyFile(backup) {
					if err := fileutil.CopyFile(path, backup); err != nil {
						return SubsetResult{}, fmt.Errorf("back up %s: %w", path, err)
					}
				}
				if err := manifest.WriteTaskRows(path, kept); err != nil {
					return SubsetResult{}, err
				}
				result.Updated = append(result.Updated, path)
			}
		}
	}
	return result, nil
}

// sampleGroup maps a sample id to its perspective-triplet group key. Ids
// without a perspective token form their own group.
func sampleGroup(sampleID string) (string, string) {
	normalized := leadingIndexRe.ReplaceAllString(sampleID, "")
	match := perspectiveRe.FindStringSubmatch(normalized)
	if match == nil {
		return normalized, ""
	}
	return perspectiveRe.ReplaceAllString(normalized, "_"), match[1]
}

func selectIDs(ordered []string, maxPerDataset int, preference []string) []string {
	type group struct {
		byPerspective map[string]string
		firstID       string
	}
	grouped := map[string]*group{}
	var groupOrder []string

	for _, id := range ordered {
		key, perspective := sampleGroup(id)
		entry, ok := grouped[key]
		if !ok {
			entry = &group{byPerspective: map[string]string{}, firstID: id}
			grouped[key] = entry
			groupOrder = append(groupOrder, key)
		}
		if perspective != "" {
			if _, exists := entry.byPerspective[perspective]; !exists {
				entry.byPerspective[perspective] = id
			}
		}
	}

	selected := make([]string, 0, maxPerDataset)
	for _, key := range groupOrder {
		if len(selected) >= maxPerDataset {
			break
		}
		entry := grouped[key]
		picked := ""
		for _, perspective := range preference {
			if id, ok := entry.byPerspective[perspective]; ok {
				picked = id
				break
			}
		}
		if picked == "" {
			picked = entry.firstID
		}
		selected = append(selected, picked)
	}
	return selected
}

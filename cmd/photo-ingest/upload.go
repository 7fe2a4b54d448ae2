package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"photo-ingest/internal/app"
	"photo-ingest/internal/filesystem"
	"photo-ingest/internal/ingest"
	"photo-ingest/internal/logging"
	"photo-ingest/internal/media"
	"photo-ingest/internal/mediatypes"
	"photo-ingest/internal/startup"
	"photo-ingest/internal/upload"
)

// errIncomplete is returned when any item of the batch failed.
var errIncomplete = errors.New("batch did not fully succeed")

var uploadFlags struct {
	concurrency int
	retries     int
	prefix      string
	user        string
	jsonOut     bool
}

var uploadCmd = &cobra.Command{
	Use:   "upload [flags] FILE|DIR...",
	Short: "Ingest and upload photos from the local filesystem",
	Long: `Upload normalizes each photo into its resolution tiers, uploads them to the
configured object store and records the result. Directories contribute
their image files, not recursively. The command exits non-zero unless every
photo succeeded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	f := uploadCmd.Flags()
	f.IntVarP(&uploadFlags.concurrency, "concurrency", "c", 0, "Concurrent uploads (0 = configured value)")
	f.IntVarP(&uploadFlags.retries, "retries", "r", -1, "Retries per upload (-1 = configured value)")
	f.StringVarP(&uploadFlags.prefix, "prefix", "p", "", "Object key prefix (default: user, then \"uploads\")")
	f.StringVarP(&uploadFlags.user, "user", "u", "", "Owner recorded on each photo")
	f.BoolVar(&uploadFlags.jsonOut, "json", false, "Print the batch result as JSON")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := startup.LoadConfigQuiet()
	if err != nil {
		return err
	}

	files, err := collectInputs(args, cfg.Ingest)
	if err != nil {
		return err
	}

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, HEIF files will be rejected: %v", err)
	}
	defer media.ShutdownVips()

	a, err := app.New(ctx, cfg, app.WithTranscoder(media.VipsTranscoder{}))
	if err != nil {
		return err
	}
	defer a.Close()

	progress := newProgressBar(os.Stderr, len(files))
	result, err := a.IngestAndUploadBatch(ctx, files, app.BatchOptions{
		Concurrency: uploadFlags.concurrency,
		MaxRetries:  uploadFlags.retries,
		KeyPrefix:   uploadFlags.prefix,
		UserID:      uploadFlags.user,
	}, progress)
	progress.Finish()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if uploadFlags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printResult(out, result)
	}

	if result.Status() != upload.AllSucceeded {
		return errIncomplete
	}
	return nil
}

// collectInputs reads every named file, expanding directories to the
// image files they directly contain. Content type is left empty so the
// declared format comes from the extension.
//
// File count and total size are checked against limits from the stat
// results before any file is read.
func collectInputs(paths []string, limits ingest.Config) ([]ingest.RawInput, error) {
	type input struct {
		name  string
		retry filesystem.RetryConfig
	}

	var (
		inputs []input
		total  int64
	)
	for _, p := range paths {
		retry := inputRetryConfig(p)
		info, err := filesystem.StatWithRetry(p, retry)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			inputs = append(inputs, input{name: p, retry: retry})
			total += info.Size()
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", p, err)
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if mediatypes.FormatForExtension(e.Name()) == mediatypes.FormatUnrecognized {
				continue
			}
			name := filepath.Join(p, e.Name())
			fi, err := filesystem.StatWithRetry(name, retry)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", name, err)
			}
			inputs = append(inputs, input{name: name, retry: retry})
			total += fi.Size()
		}
	}

	if limits.MaxBatchFiles > 0 && len(inputs) > limits.MaxBatchFiles {
		return nil, fmt.Errorf("%w: %d files, limit %d", ingest.ErrTooManyFiles, len(inputs), limits.MaxBatchFiles)
	}
	if limits.MaxBatchBytes > 0 && total > limits.MaxBatchBytes {
		return nil, fmt.Errorf("%w: %s, limit %s", ingest.ErrBatchTooLarge,
			humanize.IBytes(uint64(total)), humanize.IBytes(uint64(limits.MaxBatchBytes)))
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].name < inputs[j].name })

	files := make([]ingest.RawInput, 0, len(inputs))
	for _, in := range inputs {
		data, err := filesystem.ReadFileWithRetry(in.name, in.retry)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", in.name, err)
		}
		files = append(files, ingest.RawInput{Name: filepath.Base(in.name), Data: data})
	}
	return files, nil
}

// inputRetryConfig labels retries on root, and on anything beneath it, as
// the "input" volume.
func inputRetryConfig(root string) filesystem.RetryConfig {
	retry := filesystem.DefaultRetryConfig()
	retry.VolumeResolver = filesystem.NewVolumeResolver(map[string]string{"input": root})
	return retry
}

func printResult(w io.Writer, result *upload.BatchResult) {
	fmt.Fprintf(w, "Batch %s: %s\n", result.ID, result.Summary())
	for _, item := range result.Items {
		if item.Succeeded {
			line := fmt.Sprintf("  OK    %s -> %s", item.Name, item.Keys[media.TierFull])
			if len(item.MissingTiers) > 0 {
				line += fmt.Sprintf(" (missing %s)", strings.Join(item.MissingTiers, ", "))
			}
			fmt.Fprintln(w, line)
			continue
		}
		reason := item.Reason.String()
		if item.RejectReason != 0 {
			reason += "/" + item.RejectReason.String()
		}
		fmt.Fprintf(w, "  FAIL  %s: %s", item.Name, reason)
		if item.Error != "" {
			fmt.Fprintf(w, " (%s)", item.Error)
		}
		fmt.Fprintln(w)
	}
	if result.NeedsReauth {
		fmt.Fprintln(w, "Storage rejected the credentials; refresh them and retry the failed files.")
	}
}

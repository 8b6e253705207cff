package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/spider/internal/crawler"
	"github.com/nao1215/spider/internal/metadata"
)

// NewInspectCmd creates the inspect command.
func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect FILE|DIR...",
		Short: "Print EXIF metadata of downloaded images",
		Long: `Inspect prints the EXIF metadata embedded in image files.

Tags that reveal a location, a device, software, a person or a time are
marked with their category. Directories are searched recursively for
files with an image extension (.jpg, .jpeg, .png, .gif, .bmp).

Examples:
  # Inspect one image
  spider inspect ./data/photo.jpg

  # Show only identifying tags of everything spider saved
  spider inspect --sensitive ./data/

  # Machine-readable output
  spider inspect --json ./data/photo.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: runInspectCmd,
	}

	cmd.Flags().BoolP("sensitive", "s", false,
		"Only print tags that identify a place, a device or a person")
	cmd.Flags().BoolP("json", "j", false,
		"Output metadata in JSON format")

	return cmd
}

// runInspectCmd executes the inspect command.
func runInspectCmd(cmd *cobra.Command, args []string) error {
	sensitiveOnly, err := cmd.Flags().GetBool("sensitive")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	files, err := collectImageFiles(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	results := make([]*metadata.Metadata, 0, len(files))
	for _, path := range files {
		md, err := metadata.ReadFile(path)
		switch {
		case errors.Is(err, metadata.ErrNoExif):
			md = &metadata.Metadata{Path: path, Tags: []metadata.Tag{}}
		case err != nil:
			return err
		}
		if sensitiveOnly {
			md.Tags = md.Sensitive()
		}
		results = append(results, md)
	}

	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}

	for _, md := range results {
		writeMetadata(out, md)
	}
	return nil
}

// collectImageFiles expands directories into the image files they contain.
// Files named explicitly are kept regardless of their extension.
func collectImageFiles(args []string) ([]string, error) {
	files := make([]string, 0, len(args))
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && crawler.IsImagePath(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
	}
	return files, nil
}

// writeMetadata prints the tags of one image.
func writeMetadata(out io.Writer, md *metadata.Metadata) {
	fmt.Fprintf(out, "%s\n", md.Path)
	if len(md.Tags) == 0 {
		fmt.Fprintln(out, "  (no EXIF metadata)")
		fmt.Fprintln(out)
		return
	}

	for _, tag := range md.Tags {
		marker := " "
		label := ""
		if category, ok := tag.Category(); ok {
			marker = "!"
			label = fmt.Sprintf(" [%s]", category)
		}
		fmt.Fprintf(out, "  %s %-24s %s%s\n", marker, tag.Name, tag.Value, label)
	}
	fmt.Fprintln(out)
}

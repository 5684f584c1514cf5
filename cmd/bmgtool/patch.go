package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	bmg "github.com/logicossoftware/go-bmg"
	"github.com/spf13/cobra"
)

func (a *app) patchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Create, apply and show BMGP patch files",
	}
	cmd.AddCommand(a.patchDiffCmd(), a.patchApplyCmd(), a.patchShowCmd())
	return cmd
}

func (a *app) patchDiffCmd() *cobra.Command {
	var output, compression string
	cmd := &cobra.Command{
		Use:   "diff <base.bmg> <edited.bmg>",
		Short: "Write the text edits that turn base into edited",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("--output is required")
			}
			comp := a.cfg.Compression
			if compression != "" {
				var err error
				if comp, err = bmg.ParseCompression(compression); err != nil {
					return err
				}
			}
			base, err := a.load(args[0])
			if err != nil {
				return err
			}
			edited, err := a.load(args[1])
			if err != nil {
				return err
			}
			p, err := bmg.Diff(base, edited)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := bmg.EncodePatch(&buf, p, bmg.WithPatchCompression(comp)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d edits\n", len(p.Edits))
			return writeFile(output, buf.Bytes())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "patch file to write")
	cmd.Flags().StringVar(&compression, "compression", "", "none, zip, zstd, lz4, brotli or s2 (default from config)")
	return cmd
}

func (a *app) patchApplyCmd() *cobra.Command {
	var output string
	var ignoreSource bool
	cmd := &cobra.Command{
		Use:   "apply <base.bmg> <patch.bmgp>",
		Short: "Apply a patch and rebuild the container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("--output is required")
			}
			c, err := a.load(args[0])
			if err != nil {
				return err
			}
			p, err := readPatch(args[1])
			if err != nil {
				return err
			}
			if err := c.ApplyPatch(p, bmg.WithIgnoreSource(ignoreSource)); err != nil {
				return err
			}
			res, err := a.build(c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d edits\n", len(p.Edits))
			return writeFile(output, res.Data)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "rebuilt container path")
	cmd.Flags().BoolVar(&ignoreSource, "ignore-source", false, "apply even if the patch was made from a different file")
	return cmd
}

func (a *app) patchShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <patch.bmgp>",
		Short: "List the edits of a patch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPatch(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if p.SourceHash != 0 {
				fmt.Fprintf(w, "source: %d bytes, xxhash64 %016x\n", p.SourceSize, p.SourceHash)
			} else {
				fmt.Fprintln(w, "source: unbound")
			}
			for _, ed := range p.Edits {
				null := ""
				if ed.LeadingNull {
					null = " [null]"
				}
				fmt.Fprintf(w, "%s%s  %q\n", ed.Ref(), null, ed.Text)
			}
			return nil
		},
	}
}

func readPatch(path string) (*bmg.Patch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := bmg.DecodePatch(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

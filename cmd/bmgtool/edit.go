package main

import (
	"bytes"
	"errors"
	"fmt"

	bmg "github.com/logicossoftware/go-bmg"
	"github.com/spf13/cobra"
)

func (a *app) setCmd() *cobra.Command {
	var (
		entry, crossRef int
		text            string
		leadingNull     bool
		shared          bool
		output          string
		patchOut        string
	)
	cmd := &cobra.Command{
		Use:   "set <file.bmg>",
		Short: "Replace the text of one entry or cross-reference and rebuild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ref bmg.Ref
			switch {
			case entry >= 0 && crossRef >= 0:
				return errors.New("--entry and --crossref are mutually exclusive")
			case entry >= 0:
				ref = bmg.EntryRef(entry)
			case crossRef >= 0:
				ref = bmg.CrossRefRef(crossRef)
			default:
				return errors.New("one of --entry or --crossref is required")
			}
			if output == "" && patchOut == "" {
				return errors.New("--output or --patch is required")
			}

			c, err := a.load(args[0])
			if err != nil {
				return err
			}
			set := c.SetText
			if shared {
				set = c.SetSharedText
			}
			if err := set(ref, text, leadingNull); err != nil {
				return err
			}
			if patchOut != "" {
				var buf bytes.Buffer
				if err := bmg.EncodePatch(&buf, bmg.CreatePatch(c), bmg.WithPatchCompression(a.cfg.Compression)); err != nil {
					return err
				}
				if err := writeFile(patchOut, buf.Bytes()); err != nil {
					return err
				}
			}
			if output == "" {
				return nil
			}
			res, err := a.build(c)
			if err != nil {
				return err
			}
			if err := writeFile(output, res.Data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d -> %d bytes\n", output, len(c.Bytes()), len(res.Data))
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&entry, "entry", -1, "INF1 entry index")
	f.IntVar(&crossRef, "crossref", -1, "MID1 cross-reference id")
	f.StringVar(&text, "text", "", "new text, with control codes as [XX] or [XX:YYYY] tokens")
	f.BoolVar(&leadingNull, "leading-null", false, "prefix the string with a null unit")
	f.BoolVar(&shared, "shared", false, "also update every string sharing the same pool bytes")
	f.StringVarP(&output, "output", "o", "", "rebuilt container path")
	f.StringVar(&patchOut, "patch", "", "also write the edit as a BMGP patch")
	return cmd
}

func (a *app) rebuildCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "rebuild <file.bmg>",
		Short: "Parse and rebuild without edits; reports whether the output is identical",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.load(args[0])
			if err != nil {
				return err
			}
			res, err := a.build(c)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if bytes.Equal(res.Data, c.Bytes()) {
				fmt.Fprintln(w, "identical")
			} else {
				fmt.Fprintf(w, "differs: %d -> %d bytes (pool padding %d)\n", len(c.Bytes()), len(res.Data), res.Layout.Padding)
			}
			if output != "" {
				return writeFile(output, res.Data)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the rebuilt container")
	return cmd
}

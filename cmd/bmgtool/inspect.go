package main

import (
	"encoding/json"
	"fmt"
	"io"

	bmg "github.com/logicossoftware/go-bmg"
	"github.com/spf13/cobra"
)

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.bmg>",
		Short: "Show header, sections and diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.load(args[0])
			if err != nil {
				return err
			}
			printInfo(cmd.OutOrStdout(), args[0], c)
			return nil
		},
	}
}

func printInfo(w io.Writer, name string, c *bmg.Container) {
	h := c.Header()
	s := c.Sections()
	fmt.Fprintf(w, "file:        %s (%d bytes, header says %d)\n", name, len(c.Bytes()), h.FileSize)
	fmt.Fprintf(w, "type:        %s\n", h.Type())
	fmt.Fprintf(w, "encoding:    %s\n", h.Encoding)
	fmt.Fprintf(w, "INF1:        0x%X, %d entries of %d bytes\n", s.INF1.Offset, s.INF1.Count, s.INF1.RecordSize)
	fmt.Fprintf(w, "DAT1:        0x%X, pool 0x%X..0x%X (%d bytes)\n", s.DAT1.Offset, s.DAT1.Base, s.DAT1.End, s.DAT1.PoolSize())
	if s.MID1.Present {
		fmt.Fprintf(w, "MID1:        0x%X, %d rows x %d columns\n", s.MID1.Offset, s.MID1.Rows, s.MID1.Columns)
	}
	fmt.Fprintf(w, "cross-refs:  %s (%d)\n", c.Mode(), len(c.CrossRefs()))
	fmt.Fprintf(w, "segments:    %d\n", len(c.Segments()))
	if diags := c.Diagnostics(); len(diags) > 0 {
		fmt.Fprintf(w, "diagnostics:\n")
		for _, d := range diags {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
}

type dumpString struct {
	Kind        string `json:"kind"`
	Index       int    `json:"index"`
	MessageID   uint16 `json:"message_id,omitempty"`
	GroupID     uint16 `json:"group_id,omitempty"`
	Offset      uint32 `json:"offset"`
	Text        string `json:"text"`
	LeadingNull bool   `json:"leading_null,omitempty"`
	Flagged     bool   `json:"flagged,omitempty"`
}

func collectStrings(c *bmg.Container) []dumpString {
	var out []dumpString
	for _, e := range c.Entries() {
		out = append(out, dumpString{
			Kind:        bmg.RefEntry.String(),
			Index:       e.Index,
			MessageID:   e.MessageID,
			GroupID:     e.GroupID,
			Offset:      e.Offset,
			Text:        e.Text,
			LeadingNull: e.LeadingNull,
		})
	}
	for _, x := range c.CrossRefs() {
		out = append(out, dumpString{
			Kind:        bmg.RefCrossRef.String(),
			Index:       x.ID,
			Offset:      x.Offset,
			Text:        x.Text,
			LeadingNull: x.LeadingNull,
			Flagged:     x.Flagged(),
		})
	}
	return out
}

func (a *app) dumpCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "dump <file.bmg>",
		Short: "List every entry and cross-reference with its text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.load(args[0])
			if err != nil {
				return err
			}
			strs := collectStrings(c)
			w := cmd.OutOrStdout()
			if asJSON {
				b, err := json.MarshalIndent(strs, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(w, string(b))
				return nil
			}
			for _, s := range strs {
				null := ""
				if s.LeadingNull {
					null = " [null]"
				}
				if s.Flagged {
					null += " [flagged]"
				}
				fmt.Fprintf(w, "%-9s %4d  %04X:%04X  0x%06X%s  %q\n",
					s.Kind, s.Index, s.GroupID, s.MessageID, s.Offset, null, s.Text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

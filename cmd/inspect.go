package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"dasbindgen/binder"
)

func NewInspectCmd() *cobra.Command {
	var src sourceOptions

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List the entities a header would bind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tu, err := src.load(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := inspectRows(tu)
			if err != nil {
				return err
			}
			renderTable(cmd.OutOrStdout(), rows)
			return nil
		},
	}

	src.register(cmd)
	return cmd
}

// inspectRows lists every configured entity followed by the synthesized
// accessors
func inspectRows(tu *binder.TranslationUnit) ([][]string, error) {
	discovered, err := tu.Discovered()
	if err != nil {
		return nil, err
	}
	functions, err := tu.Functions()
	if err != nil {
		return nil, err
	}

	var data [][]string
	for _, ent := range discovered {
		status := binder.StatusKept
		if ent.IsIgnored() {
			status = binder.StatusIgnored
		}
		data = append(data, []string{ent.Kind().String(), ent.Name(), ent.DasName(), status.String(), notes(ent)})
	}
	for _, f := range functions {
		if f.IsSynthesized() {
			data = append(data, []string{f.Kind().String(), f.Name(), f.DasName(), "synthesized", notes(f)})
		}
	}
	return data, nil
}

func notes(ent binder.Entity) string {
	var parts []string
	switch e := ent.(type) {
	case *binder.Enum:
		parts = append(parts, fmt.Sprintf("%d values", len(e.Fields())))
	case *binder.Struct:
		parts = append(parts, fmt.Sprintf("%s, %d fields", e.Tag(), len(e.Fields())))
		if n := len(binder.Accessors(e)) / 2; n > 0 {
			parts = append(parts, fmt.Sprintf("%d bit-fields", n))
		}
		if binder.HasDeferredFields(e) {
			parts = append(parts, "self-referencing")
		}
	case *binder.OpaqueStruct:
		if e.PtrType() == "" {
			parts = append(parts, "no ptr type")
		} else {
			parts = append(parts, "ptr "+e.PtrType())
		}
	case *binder.Function:
		parts = append(parts, string(e.SideEffects()))
		if e.CopyOrMove() {
			parts = append(parts, "returns struct")
		}
		if e.IsVariadic() {
			parts = append(parts, "variadic")
		}
	case *binder.MacroConst:
		parts = append(parts, "= "+e.Value())
	}
	return strings.Join(parts, ", ")
}

func renderTable(w io.Writer, data [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"KIND", "NAME", "DAS NAME", "STATUS", "NOTES"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	table.AppendBulk(data)
	table.Render()
}

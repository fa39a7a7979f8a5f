package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

var (
	entitiesCategory string
	entitiesKind     string
	entitiesTask     string
	entitiesJSON     bool
)

var entitiesCmd = &cobra.Command{
	Use:   "entities [id]",
	Short: "List committed entities",
	Long: `List the entities in the project's store, optionally filtered.

With an id, prints that entity in full as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEntities,
}

func init() {
	entitiesCmd.Flags().StringVar(&entitiesCategory, "category", "", "only this category (sight, restaurant, hotel, route, day, info)")
	entitiesCmd.Flags().StringVar(&entitiesKind, "kind", "", "only this kind (poi, route, content)")
	entitiesCmd.Flags().StringVar(&entitiesTask, "task", "", "only entities created by this task")
	entitiesCmd.Flags().BoolVar(&entitiesJSON, "json", false, "print JSON instead of a table")
}

func runEntities(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		e, ok := a.store.Get(args[0])
		if !ok {
			if a.store.IsRetired(args[0]) {
				return fmt.Errorf("%s was discarded", args[0])
			}
			return fmt.Errorf("no entity %s", args[0])
		}
		return printJSON(e)
	}

	var list []*models.Entity
	switch {
	case entitiesTask != "":
		list = a.store.ListProducedBy(entitiesTask)
	case entitiesKind != "":
		k := models.Kind(entitiesKind)
		if !k.Valid() {
			return fmt.Errorf("unknown kind %q", entitiesKind)
		}
		list = a.store.ListByKind(k)
	default:
		list = a.store.All()
	}
	if entitiesCategory != "" {
		filtered := list[:0]
		for _, e := range list {
			if string(e.Category) == entitiesCategory {
				filtered = append(filtered, e)
			}
		}
		list = filtered
	}

	if entitiesJSON {
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No entities match.")
		return nil
	}
	rows := make([][]string, len(list))
	for i, e := range list {
		rows[i] = []string{e.ID, string(e.Category), truncate(e.Name, 40), e.ProducedBy, fieldSummary(e.Fields)}
	}
	fmt.Println(renderTable([]string{"id", "category", "name", "task", "fields"}, rows, 4))
	fmt.Printf("%d entities\n", len(list))
	return nil
}

// fieldSummary lists the populated field names.
func fieldSummary(fields map[string]any) string {
	names := make([]string, 0, len(fields))
	for k, v := range fields {
		if !models.IsEmptyValue(v) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return truncate(strings.Join(names, ", "), 50)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

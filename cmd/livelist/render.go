package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"livelist/internal/list/model"
	"livelist/internal/liststore"
)

func renderItems(l model.List) string {
	if len(l.Items) == 0 {
		return fmt.Sprintf("%s\n  (no items)", l.Name)
	}
	rows := make([][]string, 0, len(l.Items))
	for i, it := range l.Items {
		mark := "[ ]"
		if it.Checked {
			mark = "[x]"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), mark, it.Text})
	}
	return l.Name + "\n" + renderTable([]string{"#", "", "Item"}, rows, 0)
}

func renderLists(st liststore.State) string {
	rows := make([][]string, 0, len(st.Lists))
	for _, l := range st.Lists {
		active := ""
		if l.ID == st.ActiveListID {
			active = "*"
		}
		done := 0
		for _, it := range l.Items {
			if it.Checked {
				done++
			}
		}
		rows = append(rows, []string{
			active,
			l.ID,
			l.Name,
			fmt.Sprintf("%d/%d", done, len(l.Items)),
			formatTimestamp(l.UpdatedAt),
		})
	}
	return renderTable([]string{"", "ID", "Name", "Done", "Updated"}, rows, 3)
}

func renderUsers(title string, names []string) string {
	if len(names) == 0 {
		return title + ": nobody"
	}
	return title + ": " + strings.Join(names, ", ")
}

func formatTimestamp(ts model.Timestamp) string {
	if ts == 0 {
		return "-"
	}
	return ts.Time().Local().Format(time.DateTime)
}

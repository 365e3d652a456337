package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

// NewAdminCmd создаёт группу команд для таблиц портала.
func NewAdminCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Browse portal tables",
	}

	cmd.AddCommand(
		newAdminListCmd(clientFn, outputFn),
		newAdminGetCmd(clientFn, outputFn),
		newAdminDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newAdminListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts AdminListOpts
	var filters []string
	var columns []string

	cmd := &cobra.Command{
		Use:   "list RESOURCE",
		Short: "List records of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			opts.Filters = make(map[string]string)
			for _, kv := range filters {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid filter format %q, expected FIELD=VALUE", kv)
				}
				opts.Filters[parts[0]] = parts[1]
			}

			records, total, err := client.AdminList(args[0], opts)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(recordValues(records))
				return nil
			}

			headers := columns
			if len(headers) == 0 {
				headers = recordColumns(records)
			}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = make([]string, len(headers))
				for j, h := range headers {
					rows[i][j] = r.Get(gjsonKey(h)).String()
				}
			}
			out.Table(upper(headers), rows)
			out.Success(fmt.Sprintf("%d of %d records", len(records), total))
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Start, "start", 0, "Offset of the first record")
	cmd.Flags().IntVar(&opts.End, "end", 25, "Offset after the last record")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "Sort column")
	cmd.Flags().StringVar(&opts.Order, "order", "", "Sort order (ASC, DESC)")
	cmd.Flags().StringSliceVar(&filters, "filter", nil, "Filters as FIELD=VALUE (repeatable)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to show (default: all)")

	return cmd
}

func newAdminGetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "get RESOURCE ID",
		Short: "Show a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := clientFn().AdminGet(args[0], args[1])
			if err != nil {
				return err
			}
			outputFn().RawJSON([]byte(record.Raw))
			return nil
		},
	}
}

func newAdminDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete RESOURCE ID...",
		Short: "Delete records",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := clientFn().AdminDelete(args[0], args[1:])
			if err != nil {
				return err
			}
			outputFn().Success(msg)
			return nil
		},
	}
}

// recordColumns возвращает ключи первой записи в порядке ответа.
func recordColumns(records []gjson.Result) []string {
	if len(records) == 0 {
		return []string{"id"}
	}
	var cols []string
	records[0].ForEach(func(key, _ gjson.Result) bool {
		cols = append(cols, key.String())
		return true
	})
	return cols
}

func recordValues(records []gjson.Result) []any {
	values := make([]any, len(records))
	for i, r := range records {
		values[i] = r.Value()
	}
	return values
}

// gjsonKey экранирует служебные символы gjson в имени поля.
func gjsonKey(name string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(name)
}

func upper(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(v)
	}
	return out
}

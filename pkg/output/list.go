package output

import (
	"bufio"
	"context"
	"io"
)

// ListFormatter writes one proxy URL per line and nothing else, for piping
// into other tools.
type ListFormatter struct{}

func NewListFormatter() *ListFormatter {
	return &ListFormatter{}
}

func (f *ListFormatter) Name() string {
	return "list"
}

func (f *ListFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, p := range report.Proxies {
		if _, err := bw.WriteString(p.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

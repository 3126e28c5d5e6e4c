package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/regalert/internal/model"
)

// IDsFormatter outputs just the record ids, one per line.
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes record ids to the writer, one per line.
func (f *IDsFormatter) Format(w io.Writer, alerts []model.Alert) error {
	for _, a := range alerts {
		if _, err := fmt.Fprintln(w, a.RecordID); err != nil {
			return err
		}
	}
	return nil
}

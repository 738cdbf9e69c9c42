// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/mia-platform/feedagg/internal/destination"
)

var _ destination.Sender = &writerDestination{}

type writerDestination struct {
	writer io.Writer

	lock sync.Mutex
}

func NewDestination(w io.Writer) destination.Sender {
	return &writerDestination{
		writer: w,
	}
}

func (d *writerDestination) SendData(_ context.Context, data *destination.Data) error {
	builder := new(strings.Builder)

	builder.WriteString("Send data:\n")
	if data.RunID != "" {
		builder.WriteString("\tRun: " + data.RunID + "\n")
	}
	builder.WriteString("\tSupplier: " + strconv.Itoa(data.SupplierID) + "\n")
	builder.WriteString("\tKey: " + data.Key + "\n")
	builder.WriteString("\tFields: ")

	encoder := json.NewEncoder(builder)
	encoder.SetIndent("\t", "\t")
	if err := encoder.Encode(data); err != nil {
		return err
	}
	builder.WriteString("\n")

	d.lock.Lock()
	defer d.lock.Unlock()
	_, err := fmt.Fprint(d.writer, builder.String())
	return err
}

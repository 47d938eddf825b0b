// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package prometrics

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/grailbio/base/data"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/log"
	dto "github.com/prometheus/client_model/go"
)

// Dump gathers the client's metrics and logs one line per metric
// family that has samples. If restrict is non-empty, only the metrics
// it names are logged.
func (c *Client) Dump(log *log.Logger, restrict map[string]bool) error {
	mfs, err := c.reg.Gather()
	if err != nil {
		return errors.E("gather", err)
	}
	for _, mf := range mfs {
		name := strings.TrimPrefix(mf.GetName(), c.namespace+"_")
		if len(restrict) > 0 && !restrict[name] {
			continue
		}
		if s := toString(mf); s != "" {
			log.Printf("%s: %s  (%s)", mf.GetName(), s, mf.GetHelp())
		}
	}
	return nil
}

func toString(mf *dto.MetricFamily) string {
	var b bytes.Buffer
	sep := ""
	for _, m := range mf.GetMetric() {
		var prefix string
		if l := labelString(m); l != "" {
			prefix = fmt.Sprintf("(%s)=", l)
		}
		switch v, ok := singleValue(mf.GetType(), m); {
		case ok && strings.HasSuffix(mf.GetName(), "_bytes"):
			fmt.Fprintf(&b, "%s%s%s", sep, prefix, data.Size(v))
		case ok:
			fmt.Fprintf(&b, "%s%s%.4g", sep, prefix, v)
		case mf.GetType() == dto.MetricType_HISTOGRAM:
			h := m.GetHistogram()
			if h.GetSampleCount() == 0 {
				continue
			}
			fmt.Fprintf(&b, "%s%scount=%d sum=%.4g", sep, prefix, h.GetSampleCount(), h.GetSampleSum())
		default:
			continue
		}
		sep = ", "
	}
	return b.String()
}

func labelString(m *dto.Metric) string {
	var b bytes.Buffer
	sep := ""
	for _, lp := range m.GetLabel() {
		fmt.Fprintf(&b, "%s%s=%s", sep, lp.GetName(), lp.GetValue())
		sep = ","
	}
	return b.String()
}

// singleValue returns the value of a counter or gauge.
func singleValue(typ dto.MetricType, m *dto.Metric) (v float64, ok bool) {
	switch typ {
	case dto.MetricType_GAUGE:
		v, ok = m.GetGauge().GetValue(), true
	case dto.MetricType_COUNTER:
		v, ok = m.GetCounter().GetValue(), true
	}
	return
}

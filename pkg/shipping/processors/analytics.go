package processors

import (
	"context"

	"github.com/tournevent/shipquote/pkg/shipping"
)

// AnalyticsCode is the code of the analytics post-processor.
const AnalyticsCode = "shippingAnalyticsPostProcessor"

// OptionRecorder counts finalized options.
type OptionRecorder interface {
	RecordOption(store, module, option string)
}

// Analytics reports every finalized option to a recorder.
type Analytics struct {
	recorder OptionRecorder
}

// NewAnalytics creates the analytics post-processor.
func NewAnalytics(recorder OptionRecorder) *Analytics {
	return &Analytics{recorder: recorder}
}

// Code returns the processor code.
func (a *Analytics) Code() string {
	return AnalyticsCode
}

// Process records the quote's options.
func (a *Analytics) Process(_ context.Context, qc *shipping.QuoteContext) error {
	if a.recorder == nil {
		return nil
	}
	for _, opt := range qc.Quote.Options {
		code := opt.OptionCode
		if code == "" {
			code = "default"
		}
		a.recorder.RecordOption(qc.Store.Code, opt.ModuleCode, code)
	}
	return nil
}

var _ shipping.Processor = (*Analytics)(nil)

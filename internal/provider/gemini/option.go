package gemini

import "github.com/cloudwego/eino/components/model"

type options struct {
	TopK *int
}

// WithTopK limits sampling to the k most likely tokens. Other chat models ignore it.
func WithTopK(k int) model.Option {
	return model.WrapImplSpecificOptFn(func(o *options) {
		o.TopK = &k
	})
}

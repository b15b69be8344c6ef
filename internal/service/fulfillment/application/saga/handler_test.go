package saga

import (
	"context"
	"testing"

	"bazaar/internal/service/fulfillment/domain"

	"github.com/stretchr/testify/assert"
)

func TestCompensationRunsInReverseOrder(t *testing.T) {
	orderCtx := &OrderContext{Order: &domain.Order{ID: "order-1"}}

	var ran []string
	orderCtx.AddCompensation(func(ctx context.Context) { ran = append(ran, "first") })
	orderCtx.AddCompensation(func(ctx context.Context) { ran = append(ran, "second") })

	orderCtx.TriggerCompensation(context.Background())

	// 后注册的补偿先执行
	assert.Equal(t, []string{"second", "first"}, ran)
}

type recordingHandler struct {
	NextHandler
	name string
	log  *[]string
	err  error
}

func (h *recordingHandler) Handle(orderCtx *OrderContext) error {
	*h.log = append(*h.log, h.name)
	if h.err != nil {
		return h.err
	}
	return h.executeNext(orderCtx)
}

func TestChainStopsAtFirstError(t *testing.T) {
	var log []string
	first := &recordingHandler{name: "first", log: &log}
	second := &recordingHandler{name: "second", log: &log, err: assert.AnError}
	third := &recordingHandler{name: "third", log: &log}
	first.SetNext(second).SetNext(third)

	err := first.Handle(&OrderContext{})

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"first", "second"}, log)
}

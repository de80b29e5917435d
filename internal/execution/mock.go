package execution

import (
	"context"
	"log/slog"
	"strconv"

	"futures_go/internal/domain"
)

// placeStep scripts one Place response.
type placeStep struct {
	res domain.PlaceResult
	err error
}

// cancelStep scripts one Cancel response.
type cancelStep struct {
	outcome domain.CancelOutcome
	err     error
}

// MockGateway is a scripted gateway for tests and dry runs. Responses
// are consumed in FIFO order; every call is recorded.
type MockGateway struct {
	places  []placeStep
	cancels []cancelStep

	PlacedOrders []domain.Order
	CancelledIDs []string
}

// NewMockGateway creates an empty mock. With no scripted responses it
// accepts every order with a generated ID and every cancel succeeds.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// ScriptPlace queues the response for the next Place call.
func (m *MockGateway) ScriptPlace(res domain.PlaceResult, err error) {
	m.places = append(m.places, placeStep{res: res, err: err})
}

// ScriptCancel queues the response for the next Cancel call.
func (m *MockGateway) ScriptCancel(outcome domain.CancelOutcome, err error) {
	m.cancels = append(m.cancels, cancelStep{outcome: outcome, err: err})
}

func (m *MockGateway) Place(ctx context.Context, order domain.Order) (domain.PlaceResult, error) {
	m.PlacedOrders = append(m.PlacedOrders, order)

	if len(m.places) == 0 {
		res := domain.PlaceResult{OrderID: generatedID(len(m.PlacedOrders)), Status: "NEW"}
		slog.Info("MOCK GATEWAY: Place",
			slog.String("symbol", order.Symbol),
			slog.String("side", string(order.Side)),
			slog.String("id", res.OrderID))
		return res, nil
	}

	step := m.places[0]
	m.places = m.places[1:]
	return step.res, step.err
}

func (m *MockGateway) Cancel(ctx context.Context, symbol, orderID string) (domain.CancelOutcome, error) {
	m.CancelledIDs = append(m.CancelledIDs, orderID)

	if len(m.cancels) == 0 {
		slog.Info("MOCK GATEWAY: Cancel", slog.String("id", orderID))
		return domain.CancelDone, nil
	}

	step := m.cancels[0]
	m.cancels = m.cancels[1:]
	return step.outcome, step.err
}

func generatedID(n int) string {
	return "mock-" + strconv.Itoa(n)
}

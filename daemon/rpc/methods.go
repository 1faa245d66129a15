package rpc

import (
	"encoding/json"

	"github.com/catalogfi/swapboard/pkg/board"
	"github.com/catalogfi/swapboard/pkg/lifecycle"
	"github.com/catalogfi/swapboard/pkg/model"
)

// Board is the surface the RPC methods need from the coordinator.
type Board interface {
	Offers() []board.Offer
	FeasibleOffers() []board.Offer
	Transactions() []model.SwapTransaction
	ActiveSwapCount(asset model.Asset) uint32
	ActiveSwapTotal() int
	LifecycleStatus(id string) (lifecycle.Message, bool)
	Confirmations(id string) (string, bool)
	CancelOffer(id string)
	CancelTx(id string)
	DeleteTx(id string)
	PublishOffer(offer model.SwapOffer) error
}

// Methods lists every method the server registers.
func Methods(b Board) []Method {
	return []Method{
		&allOffers{b},
		&feasibleOffers{b},
		&transactions{b},
		&activeSwapCount{b},
		&lifecycleStatus{b},
		&confirmations{b},
		&cancelOffer{b},
		&cancelTx{b},
		&deleteTx{b},
		&publishOffer{b},
	}
}

type idParams struct {
	ID string `json:"id"`
}

type allOffers struct{ board Board }

func (m *allOffers) Name() string { return "allOffers" }

func (m *allOffers) Query(params json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(m.board.Offers())
}

type feasibleOffers struct{ board Board }

func (m *feasibleOffers) Name() string { return "feasibleOffers" }

func (m *feasibleOffers) Query(params json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(m.board.FeasibleOffers())
}

type transactions struct{ board Board }

func (m *transactions) Name() string { return "transactions" }

func (m *transactions) Query(params json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(m.board.Transactions())
}

type activeSwapCount struct{ board Board }

func (m *activeSwapCount) Name() string { return "activeSwapCount" }

func (m *activeSwapCount) Query(params json.RawMessage) (json.RawMessage, error) {
	var req struct {
		Asset model.Asset `json:"asset,omitempty"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
	}

	counts := map[string]uint32{}
	if req.Asset != "" {
		counts[string(req.Asset)] = m.board.ActiveSwapCount(req.Asset)
	} else {
		for _, asset := range model.Assets() {
			counts[string(asset)] = m.board.ActiveSwapCount(asset)
		}
	}
	return json.Marshal(struct {
		Counts map[string]uint32 `json:"counts"`
		Total  int               `json:"total"`
	}{counts, m.board.ActiveSwapTotal()})
}

type lifecycleStatus struct{ board Board }

func (m *lifecycleStatus) Name() string { return "lifecycleStatus" }

func (m *lifecycleStatus) Query(params json.RawMessage) (json.RawMessage, error) {
	var req idParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, err
	}
	message, ok := m.board.LifecycleStatus(req.ID)
	return json.Marshal(struct {
		Message *lifecycle.Message `json:"message,omitempty"`
	}{messagePtr(message, ok)})
}

func messagePtr(message lifecycle.Message, ok bool) *lifecycle.Message {
	if !ok {
		return nil
	}
	return &message
}

type confirmations struct{ board Board }

func (m *confirmations) Name() string { return "confirmations" }

func (m *confirmations) Query(params json.RawMessage) (json.RawMessage, error) {
	var req idParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, err
	}
	display, ok := m.board.Confirmations(req.ID)
	return json.Marshal(struct {
		Confirmations string `json:"confirmations,omitempty"`
		Found         bool   `json:"found"`
	}{display, ok})
}

type cancelOffer struct{ board Board }

func (m *cancelOffer) Name() string { return "cancelOffer" }

func (m *cancelOffer) Query(params json.RawMessage) (json.RawMessage, error) {
	var req idParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, err
	}
	m.board.CancelOffer(req.ID)
	return json.Marshal(true)
}

type cancelTx struct{ board Board }

func (m *cancelTx) Name() string { return "cancelTx" }

func (m *cancelTx) Query(params json.RawMessage) (json.RawMessage, error) {
	var req idParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, err
	}
	m.board.CancelTx(req.ID)
	return json.Marshal(true)
}

type deleteTx struct{ board Board }

func (m *deleteTx) Name() string { return "deleteTx" }

func (m *deleteTx) Query(params json.RawMessage) (json.RawMessage, error) {
	var req idParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, err
	}
	m.board.DeleteTx(req.ID)
	return json.Marshal(true)
}

type publishOffer struct{ board Board }

func (m *publishOffer) Name() string { return "publishOffer" }

func (m *publishOffer) Query(params json.RawMessage) (json.RawMessage, error) {
	var offer model.SwapOffer
	if err := json.Unmarshal(params, &offer); err != nil {
		return nil, err
	}
	if err := m.board.PublishOffer(offer); err != nil {
		return nil, err
	}
	return json.Marshal(true)
}

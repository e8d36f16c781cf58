package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/signalsfoundry/universe-simulator/model"
)

// ErrUnknownStrategy indicates a persisted strategy kind has no decoder.
var ErrUnknownStrategy = errors.New("unknown movement strategy")

// EncodedStrategy is the self-describing serialized form of a strategy.
type EncodedStrategy struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

type compositeRecord struct {
	Strategies []EncodedStrategy `json:"strategies"`
}

// EncodeStrategy serializes strategy together with its kind. A nil strategy
// encodes as Stopped.
func EncodeStrategy(strategy model.MovementStrategy) (EncodedStrategy, error) {
	if strategy == nil {
		strategy = &Stopped{}
	}

	var (
		data []byte
		err  error
	)
	if composite, ok := strategy.(*Composite); ok {
		rec := compositeRecord{Strategies: make([]EncodedStrategy, 0, len(composite.Strategies))}
		for _, child := range composite.Strategies {
			enc, err := EncodeStrategy(child)
			if err != nil {
				return EncodedStrategy{}, err
			}
			rec.Strategies = append(rec.Strategies, enc)
		}
		data, err = json.Marshal(rec)
	} else {
		data, err = json.Marshal(strategy)
	}
	if err != nil {
		return EncodedStrategy{}, fmt.Errorf("encode %s strategy: %w", strategy.Kind(), err)
	}
	return EncodedStrategy{Kind: strategy.Kind(), Data: data}, nil
}

// DecodeStrategy reconstructs a strategy from its serialized form.
func DecodeStrategy(enc EncodedStrategy) (model.MovementStrategy, error) {
	var strategy model.MovementStrategy
	switch enc.Kind {
	case KindStopped, "":
		strategy = &Stopped{}
	case KindLinear:
		strategy = &Linear{}
	case KindRotate:
		strategy = &Rotate{}
	case KindFollow:
		strategy = &Follow{}
	case KindOrbital:
		strategy = &Orbital{}
	case KindComposite:
		var rec compositeRecord
		if err := unmarshalData(enc.Data, &rec); err != nil {
			return nil, fmt.Errorf("decode composite strategy: %w", err)
		}
		composite := &Composite{}
		for _, child := range rec.Strategies {
			s, err := DecodeStrategy(child)
			if err != nil {
				return nil, err
			}
			composite.Strategies = append(composite.Strategies, s)
		}
		return composite, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, enc.Kind)
	}

	if err := unmarshalData(enc.Data, strategy); err != nil {
		return nil, fmt.Errorf("decode %s strategy: %w", enc.Kind, err)
	}
	return strategy, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

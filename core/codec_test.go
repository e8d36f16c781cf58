package core

import (
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/universe-simulator/model"
)

func TestEncodeDecodeStrategy(t *testing.T) {
	tracked := model.NewLocation(9, model.Vec3{})
	cases := []struct {
		name     string
		strategy model.MovementStrategy
		wantKind string
	}{
		{"nil", nil, KindStopped},
		{"linear", NewLinear(model.Vec3{Y: 1}, 3, 2*time.Second), KindLinear},
		{"follow", NewFollow(tracked, 5, 1, 0), KindFollow},
		{"orbital", NewOrbital(issTLE1, issTLE2, time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC), 0), KindOrbital},
		{"composite", &Composite{Strategies: []model.MovementStrategy{
			&Stopped{Delay: time.Minute},
			&Rotate{Axis: model.Vec3{Z: 1}, Speed: 1},
		}}, KindComposite},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := EncodeStrategy(tc.strategy)
			if err != nil {
				t.Fatalf("EncodeStrategy: %v", err)
			}
			if enc.Kind != tc.wantKind {
				t.Fatalf("kind = %q, want %q", enc.Kind, tc.wantKind)
			}
			dec, err := DecodeStrategy(enc)
			if err != nil {
				t.Fatalf("DecodeStrategy: %v", err)
			}
			if dec.Kind() != tc.wantKind {
				t.Fatalf("decoded kind = %q, want %q", dec.Kind(), tc.wantKind)
			}
			if tc.strategy != nil && dec.StepDelay() != tc.strategy.StepDelay() {
				t.Fatalf("decoded step delay = %v, want %v", dec.StepDelay(), tc.strategy.StepDelay())
			}
		})
	}
}

func TestDecodeStrategy_FollowKeepsTrackedID(t *testing.T) {
	enc, err := EncodeStrategy(NewFollow(model.NewLocation(12, model.Vec3{}), 5, 1, 0))
	if err != nil {
		t.Fatalf("EncodeStrategy: %v", err)
	}
	dec, err := DecodeStrategy(enc)
	if err != nil {
		t.Fatalf("DecodeStrategy: %v", err)
	}
	f, ok := dec.(*Follow)
	if !ok {
		t.Fatalf("decoded %T, want *Follow", dec)
	}
	if f.TrackedID != 12 || f.Tracked() != nil {
		t.Fatalf("expected unresolved follow of 12, got id=%d tracked=%v", f.TrackedID, f.Tracked())
	}
}

func TestDecodeStrategy_Unknown(t *testing.T) {
	_, err := DecodeStrategy(EncodedStrategy{Kind: "warp"})
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}

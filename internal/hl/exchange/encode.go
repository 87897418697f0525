package exchange

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeAction returns the msgpack bytes that are hashed for an L1 action.
// Keys are written in wire order, never sorted. Values are written exactly as
// they appear in the JSON body; normalization belongs in the constructors.
func EncodeAction(action L1Action) ([]byte, error) {
	if action == nil {
		return nil, errors.New("action is required")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := action.EncodeMsgpack(enc); err != nil {
		return nil, fmt.Errorf("encode %s action: %w", action.ActionType(), err)
	}
	return buf.Bytes(), nil
}

// mapWriter writes map entries and keeps the first error.
type mapWriter struct {
	enc *msgpack.Encoder
	err error
}

func newMapWriter(enc *msgpack.Encoder, n int) *mapWriter {
	w := &mapWriter{enc: enc}
	w.err = enc.EncodeMapLen(n)
	return w
}

func (w *mapWriter) key(k string) bool {
	if w.err != nil {
		return false
	}
	w.err = w.enc.EncodeString(k)
	return w.err == nil
}

func (w *mapWriter) putString(k, v string) {
	if w.key(k) {
		w.err = w.enc.EncodeString(v)
	}
}

func (w *mapWriter) putInt(k string, v int64) {
	if w.key(k) {
		w.err = w.enc.EncodeInt(v)
	}
}

func (w *mapWriter) putBool(k string, v bool) {
	if w.key(k) {
		w.err = w.enc.EncodeBool(v)
	}
}

func (w *mapWriter) with(k string, fn func(enc *msgpack.Encoder) error) {
	if w.key(k) {
		w.err = fn(w.enc)
	}
}

func (a OrderAction) EncodeMsgpack(enc *msgpack.Encoder) error {
	if a.Type == "" {
		return errors.New("action type is required")
	}
	if len(a.Orders) == 0 {
		return errors.New("action orders are required")
	}
	if a.Grouping == "" {
		return errors.New("action grouping is required")
	}
	mapLen := 3
	if a.Builder != nil {
		mapLen++
	}
	w := newMapWriter(enc, mapLen)
	w.putString("type", a.Type)
	w.with("orders", func(enc *msgpack.Encoder) error {
		if err := enc.EncodeArrayLen(len(a.Orders)); err != nil {
			return err
		}
		for _, order := range a.Orders {
			if err := encodeOrderWire(enc, order); err != nil {
				return err
			}
		}
		return nil
	})
	w.putString("grouping", string(a.Grouping))
	if a.Builder != nil {
		w.with("builder", func(enc *msgpack.Encoder) error {
			b := newMapWriter(enc, 2)
			b.putString("b", a.Builder.Builder)
			b.putInt("f", int64(a.Builder.Fee))
			return b.err
		})
	}
	return w.err
}

func encodeOrderWire(enc *msgpack.Encoder, order OrderWire) error {
	mapLen := 6
	if order.Cloid != "" {
		mapLen++
	}
	w := newMapWriter(enc, mapLen)
	w.putInt("a", int64(order.Asset))
	w.putBool("b", order.IsBuy)
	w.putString("p", order.Price)
	w.putString("s", order.Size)
	w.putBool("r", order.ReduceOnly)
	w.with("t", func(enc *msgpack.Encoder) error {
		return encodeOrderTypeWire(enc, order.OrderType)
	})
	if order.Cloid != "" {
		w.putString("c", order.Cloid)
	}
	return w.err
}

func encodeOrderTypeWire(enc *msgpack.Encoder, orderType OrderTypeWire) error {
	if orderType.Limit == nil {
		return errors.New("limit order type required")
	}
	w := newMapWriter(enc, 1)
	w.with("limit", func(enc *msgpack.Encoder) error {
		limit := newMapWriter(enc, 1)
		limit.putString("tif", string(orderType.Limit.Tif))
		return limit.err
	})
	return w.err
}

func (a CancelAction) EncodeMsgpack(enc *msgpack.Encoder) error {
	if a.Type == "" {
		return errors.New("action type is required")
	}
	if len(a.Cancels) == 0 {
		return errors.New("action cancels are required")
	}
	w := newMapWriter(enc, 2)
	w.putString("type", a.Type)
	w.with("cancels", func(enc *msgpack.Encoder) error {
		if err := enc.EncodeArrayLen(len(a.Cancels)); err != nil {
			return err
		}
		for _, cancel := range a.Cancels {
			c := newMapWriter(enc, 2)
			c.putInt("a", int64(cancel.Asset))
			c.putInt("o", cancel.OrderID)
			if c.err != nil {
				return c.err
			}
		}
		return nil
	})
	return w.err
}

func (a CancelByCloidAction) EncodeMsgpack(enc *msgpack.Encoder) error {
	if a.Type == "" {
		return errors.New("action type is required")
	}
	if len(a.Cancels) == 0 {
		return errors.New("action cancels are required")
	}
	w := newMapWriter(enc, 2)
	w.putString("type", a.Type)
	w.with("cancels", func(enc *msgpack.Encoder) error {
		if err := enc.EncodeArrayLen(len(a.Cancels)); err != nil {
			return err
		}
		for _, cancel := range a.Cancels {
			c := newMapWriter(enc, 2)
			c.putInt("asset", int64(cancel.Asset))
			c.putString("cloid", cancel.Cloid)
			if c.err != nil {
				return c.err
			}
		}
		return nil
	})
	return w.err
}

func (a SetReferrerAction) EncodeMsgpack(enc *msgpack.Encoder) error {
	if a.Type == "" {
		return errors.New("action type is required")
	}
	if a.Code == "" {
		return errors.New("referral code is required")
	}
	w := newMapWriter(enc, 2)
	w.putString("type", a.Type)
	w.putString("code", a.Code)
	return w.err
}

func (a SpotDeployAction) EncodeMsgpack(enc *msgpack.Encoder) error {
	if a.Type == "" {
		return errors.New("action type is required")
	}
	set := 0
	for _, present := range []bool{
		a.RegisterToken2 != nil,
		a.UserGenesis != nil,
		a.RegisterSpot != nil,
		a.Genesis != nil,
		a.RegisterHyperliquidity != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("spot deploy requires exactly one step, got %d", set)
	}
	w := newMapWriter(enc, 2)
	w.putString("type", a.Type)
	switch {
	case a.RegisterToken2 != nil:
		w.with("registerToken2", a.RegisterToken2.encode)
	case a.UserGenesis != nil:
		w.with("userGenesis", a.UserGenesis.encode)
	case a.RegisterSpot != nil:
		w.with("registerSpot", a.RegisterSpot.encode)
	case a.Genesis != nil:
		w.with("genesis", a.Genesis.encode)
	case a.RegisterHyperliquidity != nil:
		w.with("registerHyperliquidity", a.RegisterHyperliquidity.encode)
	}
	return w.err
}

func (r *RegisterToken2) encode(enc *msgpack.Encoder) error {
	mapLen := 2
	if r.FullName != "" {
		mapLen++
	}
	w := newMapWriter(enc, mapLen)
	w.with("spec", func(enc *msgpack.Encoder) error {
		spec := newMapWriter(enc, 3)
		spec.putString("name", r.Spec.Name)
		spec.putInt("szDecimals", int64(r.Spec.SzDecimals))
		spec.putInt("weiDecimals", int64(r.Spec.WeiDecimals))
		return spec.err
	})
	w.putInt("maxGas", r.MaxGas)
	if r.FullName != "" {
		w.putString("fullName", r.FullName)
	}
	return w.err
}

func (g *UserGenesis) encode(enc *msgpack.Encoder) error {
	w := newMapWriter(enc, 3)
	w.putInt("token", int64(g.Token))
	w.with("userAndWei", func(enc *msgpack.Encoder) error {
		if err := enc.EncodeArrayLen(len(g.UserAndWei)); err != nil {
			return err
		}
		for _, uw := range g.UserAndWei {
			if err := enc.EncodeArrayLen(2); err != nil {
				return err
			}
			if err := enc.EncodeString(uw.User); err != nil {
				return err
			}
			if err := enc.EncodeString(uw.Wei); err != nil {
				return err
			}
		}
		return nil
	})
	w.with("existingTokenAndWei", func(enc *msgpack.Encoder) error {
		if err := enc.EncodeArrayLen(len(g.ExistingTokenAndWei)); err != nil {
			return err
		}
		for _, tw := range g.ExistingTokenAndWei {
			if err := enc.EncodeArrayLen(2); err != nil {
				return err
			}
			if err := enc.EncodeInt(int64(tw.Token)); err != nil {
				return err
			}
			if err := enc.EncodeString(tw.Wei); err != nil {
				return err
			}
		}
		return nil
	})
	return w.err
}

func (r *RegisterSpot) encode(enc *msgpack.Encoder) error {
	w := newMapWriter(enc, 1)
	w.with("tokens", func(enc *msgpack.Encoder) error {
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := enc.EncodeInt(int64(r.Tokens[0])); err != nil {
			return err
		}
		return enc.EncodeInt(int64(r.Tokens[1]))
	})
	return w.err
}

func (g *Genesis) encode(enc *msgpack.Encoder) error {
	mapLen := 2
	if g.NoHyperliquidity {
		mapLen++
	}
	w := newMapWriter(enc, mapLen)
	w.putInt("token", int64(g.Token))
	w.putString("maxSupply", g.MaxSupply)
	if g.NoHyperliquidity {
		w.putBool("noHyperliquidity", true)
	}
	return w.err
}

func (r *RegisterHyperliquidity) encode(enc *msgpack.Encoder) error {
	mapLen := 4
	if r.NSeededLevels != nil {
		mapLen++
	}
	w := newMapWriter(enc, mapLen)
	w.putInt("spot", int64(r.Spot))
	w.putString("startPx", r.StartPx)
	w.putString("orderSz", r.OrderSz)
	w.putInt("nOrders", int64(r.NOrders))
	if r.NSeededLevels != nil {
		w.putInt("nSeededLevels", int64(*r.NSeededLevels))
	}
	return w.err
}

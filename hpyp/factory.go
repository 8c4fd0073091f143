package hpyp

import "fmt"

// Variant selects one restaurant representation for a model's lifetime. The
// value is recorded in persisted files; loading against a differently
// configured factory fails rather than misreading payload bytes.
type Variant uint8

const (
	VariantFull Variant = iota
	VariantHistogram
	VariantFractional
	VariantKneserNey
	VariantCompactReinstantiating
	VariantCompactStirling
)

var variantNames = map[Variant]string{
	VariantFull:                   "full",
	VariantHistogram:              "histogram",
	VariantFractional:             "fractional",
	VariantKneserNey:              "kneser-ney",
	VariantCompactReinstantiating: "compact-reinstantiating",
	VariantCompactStirling:        "compact-stirling",
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

// ParseVariant maps a configuration string to a Variant.
func ParseVariant(s string) (Variant, error) {
	for v, name := range variantNames {
		if name == s {
			return v, nil
		}
	}
	return 0, configErrorf("unknown restaurant variant %q", s)
}

// Factory constructs and decodes restaurants of its configured variant. It
// is the only place aware of concrete representations; the node manager and
// the model go through it exclusively.
type Factory struct {
	variant Variant
}

func NewFactory(v Variant) (*Factory, error) {
	if _, ok := variantNames[v]; !ok {
		return nil, configErrorf("unknown restaurant variant %d", uint8(v))
	}
	return &Factory{variant: v}, nil
}

func (f *Factory) Variant() Variant { return f.variant }

// Create returns an empty restaurant of the configured variant.
func (f *Factory) Create() Restaurant {
	switch f.variant {
	case VariantFull:
		return NewFullRestaurant()
	case VariantHistogram:
		return NewHistogramRestaurant()
	case VariantFractional:
		return NewFractionalRestaurant()
	case VariantKneserNey:
		return NewKneserNeyRestaurant()
	case VariantCompactReinstantiating:
		return NewCompactRestaurant(true)
	case VariantCompactStirling:
		return NewCompactRestaurant(false)
	}
	panic(fmt.Sprintf("hpyp: factory configured with unknown variant %d", uint8(f.variant)))
}

// DecodePayload reconstructs a restaurant of the configured variant from an
// encoded payload.
func (f *Factory) DecodePayload(data []byte) (Restaurant, error) {
	r := f.Create()
	if err := r.Decode(data); err != nil {
		return nil, err
	}
	return r, nil
}

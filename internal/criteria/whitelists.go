package criteria

import (
	"fmt"

	"hotel_search/internal/domain"
)

var (
	equality = []domain.Operator{domain.OpEq, domain.OpNe, domain.OpIn}
	ordered  = []domain.Operator{
		domain.OpEq, domain.OpNe, domain.OpIn, domain.OpBetween,
		domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte,
	}
	textual = []domain.Operator{domain.OpEq, domain.OpNe, domain.OpIn, domain.OpLike, domain.OpPrefix}
)

// Columns of the listings table reachable from the admin and owner searches.
func listingFields(withOwner bool) []Field {
	fields := []Field{
		{Key: "id", Column: "l.id", Ops: equality, Convert: Int()},
		{Key: "name", Column: "l.search_name", Ops: textual, Convert: SearchKey()},
		{Key: "type", Column: "l.type", Ops: equality, Convert: ListingTypeValue()},
		{Key: "status", Column: "l.status", Ops: equality, Convert: ListingStatusValue()},
		{Key: "created_at", Column: "l.created_at", Ops: ordered, Convert: Date()},
		{Key: "price_min", Column: "l.price_min", Ops: ordered, Convert: Number()},
		{Key: "price_max", Column: "l.price_max", Ops: ordered, Convert: Number()},
		{Key: "review_score", Column: "l.review_score", Ops: ordered, Convert: Number()},
		{Key: "booking_count", Column: "l.booking_count", Ops: ordered, Convert: Int()},
	}
	if withOwner {
		fields = append(fields, Field{Key: "owner_id", Column: "l.owner_id", Ops: equality, Convert: Int()})
	}
	return fields
}

var (
	AdminListingFields = mustWhitelist("admin listing", listingFields(true)...)
	// OwnerListingFields omits owner_id; the owner search pins it.
	OwnerListingFields = mustWhitelist("owner listing", listingFields(false)...)
)

// Attribute conditions compare these unit_attributes columns.
const (
	AttrNumberColumn = "num_value"
	AttrTextColumn   = "text_value"
)

// UnitAttributeFields builds the unit whitelist from the attribute-key table.
// The capacity and base_price unit columns are always present; a key whose
// code collides with them is an error.
func UnitAttributeFields(keys []domain.AttributeKey) (*Whitelist, error) {
	fields := []Field{
		{Key: "capacity", Column: "u.capacity", Ops: ordered, Convert: Int()},
		{Key: "base_price", Column: "u.base_price", Ops: ordered, Convert: Number()},
	}
	for _, k := range keys {
		f := Field{Key: k.Code, AttributeKeyID: k.ID}
		switch k.ValueType {
		case domain.AttrNumber:
			f.Column, f.Ops, f.Convert = AttrNumberColumn, ordered, Number()
		case domain.AttrText:
			f.Column, f.Ops, f.Convert = AttrTextColumn, textual, Text()
		case domain.AttrEnum:
			f.Column, f.Ops, f.Convert = AttrTextColumn, equality, Enum(k.Options)
		default:
			return nil, fmt.Errorf("criteria: attribute key %q has unknown value type %q", k.Code, k.ValueType)
		}
		if k.ID <= 0 {
			return nil, fmt.Errorf("criteria: attribute key %q has no id", k.Code)
		}
		fields = append(fields, f)
	}
	return NewWhitelist("unit", fields...)
}

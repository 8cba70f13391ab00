package database

import (
	"testing"

	"staypricing/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type priced struct {
	Price    decimal.Decimal  `bson:"price"`
	Discount *decimal.Decimal `bson:"discount,omitempty"`
}

func TestDecimalStoredAsDecimal128(t *testing.T) {
	registry := NewRegistry()
	discount := decimal.RequireFromString("-12.35")

	raw, err := bson.MarshalWithRegistry(registry, priced{Price: decimal.RequireFromString("149.99"), Discount: &discount})
	require.NoError(t, err)

	value := bson.Raw(raw).Lookup("price")
	assert.Equal(t, bsontype.Decimal128, value.Type)
	assert.Equal(t, "149.99", value.Decimal128().String())

	var decoded priced
	require.NoError(t, bson.UnmarshalWithRegistry(registry, raw, &decoded))
	assert.True(t, decimal.RequireFromString("149.99").Equal(decoded.Price))
	require.NotNil(t, decoded.Discount)
	assert.True(t, discount.Equal(*decoded.Discount))
}

func TestDecimalDecodesLegacyNumbers(t *testing.T) {
	registry := NewRegistry()
	d128, err := primitive.ParseDecimal128("80.5")
	require.NoError(t, err)

	cases := map[string]interface{}{
		"80.5":  "80.5",
		"80":    int32(80),
		"81":    int64(81),
		"80.25": 80.25,
	}
	for expected, stored := range cases {
		raw, err := bson.Marshal(bson.M{"price": stored})
		require.NoError(t, err)

		var decoded priced
		require.NoError(t, bson.UnmarshalWithRegistry(registry, raw, &decoded))
		assert.True(t, decimal.RequireFromString(expected).Equal(decoded.Price), "stored %v", stored)
	}

	raw, err := bson.Marshal(bson.M{"price": d128})
	require.NoError(t, err)
	var decoded priced
	require.NoError(t, bson.UnmarshalWithRegistry(registry, raw, &decoded))
	assert.True(t, decimal.RequireFromString("80.5").Equal(decoded.Price))

	bad, err := bson.Marshal(bson.M{"price": true})
	require.NoError(t, err)
	assert.Error(t, bson.UnmarshalWithRegistry(registry, bad, &decoded))
}

func TestRuleDocumentBSON(t *testing.T) {
	registry := NewRegistry()
	rule := &models.PricingRule{
		ID:            "r1",
		PropertyScope: models.SpecificProperty("42"),
		Name:          "Override",
		Enabled:       true,
		Payload:       models.PriceOverridePayload{Price: decimal.RequireFromString("210.00")},
		Source:        models.RuleSourceBulkEdit,
	}

	raw, err := bson.MarshalWithRegistry(registry, models.NewRuleDocument(rule))
	require.NoError(t, err)
	assert.Equal(t, bsontype.Decimal128, bson.Raw(raw).Lookup("price_override").Type)
	assert.Equal(t, "42", bson.Raw(raw).Lookup("property_id").StringValue())

	var doc models.RuleDocument
	require.NoError(t, bson.UnmarshalWithRegistry(registry, raw, &doc))
	back := doc.ToRule()
	require.NoError(t, back.Validate())
	assert.True(t, decimal.NewFromInt(210).Equal(back.Payload.(models.PriceOverridePayload).Price))
	assert.Equal(t, models.RuleSourceBulkEdit, back.Source)
}

package taxrules

// Field names of declaration lines.
const (
	FieldISIN             = "isin"
	FieldName             = "name"
	FieldCountry          = "country"
	FieldCustodyCountry   = "custody_country"
	FieldAssetCode        = "asset_code"
	FieldAssetSubcode     = "asset_subcode"
	FieldValue            = "value"
	FieldQuantity         = "quantity"
	FieldOwnershipPercent = "ownership_percent"
	FieldAcquired         = "acquired"
	FieldOrigin           = "origin"
	FieldEntity           = "entity"
	FieldAccount          = "account"
	FieldBracket          = "bracket"

	FieldMovement     = "movement"
	FieldDate         = "date"
	FieldAmount       = "amount"
	FieldCurrency     = "currency"
	FieldYearEndValue = "year_end_value"
	FieldReference    = "reference"
)

// Origin codes of a foreign-asset line.
const (
	OriginAcquired = "A" // first acquired during the fiscal year
	OriginHeld     = "M" // held from an earlier year
)

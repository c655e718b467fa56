package model

// ObjectKind distinguishes the broad categories of placed map objects.
type ObjectKind string

const (
	ObjectToken  ObjectKind = "token"
	ObjectShape  ObjectKind = "shape"
	ObjectEffect ObjectKind = "effect"
)

// MapObject is anything placed on the battle map: a token, a terrain
// shape, or a spell-effect overlay.
//
// Spell-effect objects additionally carry RoundCreated and SpellDuration.
// SpellDuration 0 (or an unset RoundCreated) marks an instant effect that
// the lifecycle sweep never removes. The creation and duration fields are
// read-only after the object is added to a store.
type MapObject struct {
	ID       string
	MapID    string
	Kind     ObjectKind
	Label    string
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Rotation float64
	Color    string

	IsSpellEffect bool
	RoundCreated  int
	SpellDuration int
}

// Clone returns a copy of the object.
func (o *MapObject) Clone() *MapObject {
	dup := *o
	return &dup
}

package storage

// Board abstracts the card slot hardware: the bus enable, the power
// rail and the write activity indicator.
type Board interface {
	// BusPower drives the bus/clock enable. The card must observe the
	// bus before the power rail comes up.
	BusPower(on bool)
	// CardPower drives the card power rail.
	CardPower(on bool)
	// ToggleActivity toggles the write activity indicator.
	ToggleActivity()
}

// NullBoard is a Board for hosts without slot control hardware.
type NullBoard struct{}

// BusPower implements Board.
func (NullBoard) BusPower(bool) {}

// CardPower implements Board.
func (NullBoard) CardPower(bool) {}

// ToggleActivity implements Board.
func (NullBoard) ToggleActivity() {}

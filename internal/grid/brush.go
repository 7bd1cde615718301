package grid

// ApplyBrush writes id into the square neighborhood of radius r around
// center: every cell in [cx-r, cx+r] x [cy-r, cy+r]. Each cell goes through
// the full SetTile pipeline independently; there is no batching, so a large
// brush produces one TileUpdated per covered cell. Returns how many cells
// actually changed.
func ApplyBrush(w *World, center CellCoord, radius int, id uint16) int {
	if radius < 0 {
		radius = 0
	}
	updated := 0
	for y := center.Y - radius; y <= center.Y+radius; y++ {
		for x := center.X - radius; x <= center.X+radius; x++ {
			if w.SetTile(x, y, id) == Updated {
				updated++
			}
		}
	}
	return updated
}

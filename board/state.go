package board

import "sync"

// Coord addresses one pixel on the canvas.
type Coord struct {
	X int
	Y int
}

// State is the sparse coordinate-to-color map of all painted pixels. A
// missing key means unpainted; the zero color is never stored. All mutations
// come from chain reads or decoded chain events, never from local guesses.
type State struct {
	lock   sync.Mutex
	pixels map[Coord]uint32
}

func NewState() *State {
	return &State{pixels: make(map[Coord]uint32)}
}

// Apply upserts a confirmed color, deleting the key when the color is zero.
func (s *State) Apply(coord Coord, color uint32) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if color == 0 {
		delete(s.pixels, coord)
		return
	}
	s.pixels[coord] = color
}

// Color returns the stored color and whether the coordinate is painted.
func (s *State) Color(coord Coord) (uint32, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	color, ok := s.pixels[coord]
	return color, ok
}

// Replace swaps in a freshly built map, dropping any zero-color entries. The
// old map is never exposed half-replaced.
func (s *State) Replace(pixels map[Coord]uint32) {
	fresh := make(map[Coord]uint32, len(pixels))
	for coord, color := range pixels {
		if color != 0 {
			fresh[coord] = color
		}
	}
	s.lock.Lock()
	s.pixels = fresh
	s.lock.Unlock()
}

// Snapshot copies the current map.
func (s *State) Snapshot() map[Coord]uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	snapshot := make(map[Coord]uint32, len(s.pixels))
	for coord, color := range s.pixels {
		snapshot[coord] = color
	}
	return snapshot
}

// Len returns the painted pixel count.
func (s *State) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.pixels)
}

// Package purfectgfx implements the inline-graphics engine used by
// purfecterm-style terminal emulators.
//
// The engine owns decoded image bitmaps and their animation frames,
// anchors them to the text grid as placements, composites multi-frame
// animations, persists frame pixel data to a size-bounded on-disk cache,
// and uploads the results to GPU textures through a pluggable Backend.
//
// The central type is GraphicsManager. A host terminal either hands it
// raw graphics escape bodies via HandleAPC or feeds it typed commands
// (TransmitCommand, PlacementCommand, DeleteCommand), and drives
// rendering through Resolve, PlacementsForVisibleRows and
// AdvanceAnimations.
//
// All GraphicsManager methods must be called from the render goroutine
// of a single terminal session; the engine performs no internal locking.
package purfectgfx

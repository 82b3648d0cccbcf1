// Package viewport paints the visible part of a large register array onto
// a fixed-size surface.
//
// A Renderer owns the scroll state of one view. Each frame it advances the
// render offset with scroll.Physics, derives the visible index range from
// the Layout, clears the surface and hands only the visible items to a
// Skin. Frames are requested through a FrameRequester that keeps at most
// one frame pending, so scroll input, data updates and resizes arriving
// together cost a single repaint.
//
// Skins decide what an item looks like. TableSkin renders the register
// debug table; CellSkin renders compact value cells for a grid.
package viewport

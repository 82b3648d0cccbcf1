// Package scroll implements the smoothing that moves a viewport's render
// offset toward its scroll target.
//
// Each frame the render offset closes a fixed fraction of the remaining
// distance. Large jumps are first pulled to within a catch-up ceiling, the
// step has a floor so motion never stalls, and steps close to a whole
// multiple of the item period are nudged off that multiple. Content that
// moves by an exact period per frame looks frozen, and content that moves
// by slightly less looks like it runs backwards.
//
// Wheel adds acceleration on top of the native scroll delta. It only moves
// the target; the convergence above is unaffected.
package scroll

// Package router copies a camera's depth and motion vector buffers into textures chosen by the
// application, optionally re-encoding the values on the way.
//
// A Controller per camera holds the destinations and encodings and owns the RT handles wrapping
// them. Controllers are attached to cameras through a Registry. The Feature, added to a
// renderer, schedules one CompositingPass per camera before post-processing; the pass draws a
// single full-screen triangle with the program variant matching the destinations in use.
package router

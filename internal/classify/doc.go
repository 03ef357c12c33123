// Package classify scores text for toxic or hateful content. It carries two
// classifier implementations behind one interface: a primary ONNX
// transformer path and a lexical fallback used when the model assets are
// unavailable. The mode is decided once at construction and never changes
// for the lifetime of the instance, so the rest of the pipeline can rely on
// the Predict/Flagged contract regardless of which path is active.
package classify

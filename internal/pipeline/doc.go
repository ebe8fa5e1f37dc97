// Package pipeline turns a photograph into a weavable carpet design.
//
// An Orchestrator runs a fixed sequence of optional stages over one working
// image:
//
//	geometry -> remove_background -> detect_edges -> generate_design
//	         -> quantize_colors -> apply_symmetry -> vectorize -> finalize
//
// Geometry and finalization always run. Every other stage is switched on by
// its RunConfig toggle; apply_symmetry is additionally suppressed for inputs
// that are already a complete design.
//
// # Engines
//
// Segmentation, edge detection and generation are delegated to engines
// obtained from an engine.Factory through an engine.Cache. Engines are built
// on first use and shared by every later run of the same Orchestrator.
//
// # Cancellation and Progress
//
// Cancellation is cooperative. The context passed to Process is checked
// before every stage and before finalization; a stage that has started always
// finishes, and artifacts already written stay on disk. Engines never see the
// cancellation, only the context's values.
//
// Progress is reported as (current, total) after each enabled stage, where
// total counts the enabled stages other than geometry and finalization.
//
// # Failure Policy
//
//   - Cancellation returns the partial Result with a *CancelledError.
//   - A stage that finds nothing to work on (no foreground, no control image,
//     no model configured) is logged, recorded as skipped or degraded, and the
//     run continues with the unchanged working image.
//   - Vectorization failures, including a missing tracer, are logged and the
//     raster result stays authoritative.
//   - Any other error aborts the run and is returned with the partial Result.
//
// Aborted runs still leave run_report.json, carrying the error, next to the
// artifacts already written.
//
// The orchestrator never exits the process.
package pipeline

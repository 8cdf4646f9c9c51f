// Gpupin is a compatibility shim for ComfyUI installations that run the
// multi-GPU extension. The extension replaces ComfyUI's device-selection
// function with a load-balancing one, which can split a ControlNet
// preprocessor's model components across devices mid-load. Gpupin exposes
// drop-in wrapper nodes that pin device resolution to a single target device
// for the duration of a preprocessor's load-and-run call, then restore the
// prior behavior on every exit path.
package gpupin

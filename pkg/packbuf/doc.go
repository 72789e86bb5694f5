// Package packbuf provides growable pack/unpack buffers for the checkpoint
// wire format.
//
// A Buffer separates logical length (bytes packed so far) from capacity
// (bytes the buffer may hold before it has to grow). Receivers of
// forwarded records use the capacity as their receive-buffer size; senders
// negotiate growth explicitly with Resize.
//
// All integers are big-endian. Byte slices are length-prefixed with an
// int32.
//
// Reader and Writer apply the same encoding to streams. Both keep the first
// error they hit and turn every later call into a no-op, so callers check
// Err once after a sequence of operations.
package packbuf

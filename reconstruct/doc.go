// Package reconstruct re-paces streamed text for display.
//
// Network chunks arrive in arbitrary sizes. A Reconstructor splits them into
// grapheme clusters, queues them in arrival order and emits one cluster per
// interval to a Sink, so the reader sees a steady reveal regardless of how
// the bytes were chunked. A shared cancel.Token stops the reveal between
// units; what was already emitted stays.
//
//	r := reconstruct.New(reconstruct.SinkFunc(func(u string) { fmt.Print(u) }))
//	for {
//		chunk, err := reader.Next()
//		if err != nil {
//			break
//		}
//		r.Write(chunk)
//	}
//	r.CloseInput()
//	res, _ := r.Wait(ctx)
package reconstruct

package apiserver

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// transferChunkBytes bounds how much is read per rate-limiter reservation,
// so a slow limiter throttles smoothly instead of admitting one huge burst.
const transferChunkBytes = 64 * 1024

// copyWithBandwidthLimit copies from src to dst, consulting limiter (if non-
// nil) before each chunk and bailing out the moment ctx is cancelled, so a
// client disconnecting mid-upload doesn't leave the copy running to completion.
func copyWithBandwidthLimit(ctx context.Context, dst io.Writer, src io.Reader, limiter *rate.Limiter) (int64, error) {
	buf := make([]byte, transferChunkBytes)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					return total, err
				}
			}
			written, writeErr := dst.Write(buf[:n])
			total += int64(written)
			if writeErr != nil {
				return total, writeErr
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}

// copyStream copies a rendered file stream to the response writer with no
// bandwidth limiting applied (downloads are gated by the caller's account
// quota, not this chunking loop).
func copyStream(dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, src)
}

package display

// letterbox fits a srcW×srcH picture inside a dstW×dstH viewport, centred,
// and returns the GL viewport rectangle.
func letterbox(dstW, dstH, srcW, srcH int) (x, y, w, h int) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return 0, 0, max(dstW, 0), max(dstH, 0)
	}
	if srcW*dstH > srcH*dstW {
		w, h = dstW, srcH*dstW/srcW
	} else {
		w, h = srcW*dstH/srcH, dstH
	}
	return (dstW - w) / 2, (dstH - h) / 2, w, h
}

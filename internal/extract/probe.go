package extract

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// probe asks pdfcpu why a document could not be read as text. It returns a
// short diagnosis, or "" when pdfcpu reads the file without complaint.
func probe(data []byte) (diag string) {
	defer func() {
		if r := recover(); r != nil {
			diag = fmt.Sprintf("pdfcpu panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return fmt.Sprintf("pdfcpu: %v", err)
	}
	if ctx.Encrypt != nil {
		return "document is encrypted"
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return fmt.Sprintf("pdfcpu: failed to determine page count: %v", err)
	}
	if ctx.PageCount == 0 {
		return "document has no pages"
	}
	return ""
}

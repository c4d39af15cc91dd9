package transfer

import (
	"context"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// Link is the deep link a receiving app opens for code.
func (s *Service) Link(code string) string {
	return fmt.Sprintf("%s://transfer/%s", s.cfg.Scheme, code)
}

// QRCode renders the deep link of an existing transfer as a PNG.
func (s *Service) QRCode(ctx context.Context, code string) ([]byte, error) {
	const op = "service.transfer.QRCode"

	view, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	png, err := qrcode.Encode(s.Link(view.Transfer.Code), qrcode.Medium, s.cfg.QRSize)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return png, nil
}

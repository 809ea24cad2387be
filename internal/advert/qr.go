package advert

import (
	"io"

	qrterminal "github.com/mdp/qrterminal/v3"
)

// RenderQR writes the advertisement's JSON payload as a terminal QR code.
// Scanning it in another client is the fastest way to pair two nodes.
func RenderQR(w io.Writer, a *Advertisement) error {
	payload, err := a.EncodeJSON()
	if err != nil {
		return err
	}
	qrterminal.GenerateWithConfig(payload, qrterminal.Config{
		Level:     qrterminal.M,
		Writer:    w,
		BlackChar: qrterminal.BLACK,
		WhiteChar: qrterminal.WHITE,
		QuietZone: 1,
	})
	return nil
}

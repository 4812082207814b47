package reports

import (
	"github.com/veralens/veralensbackend/utils"
)

// utilsDecodeFit decodes raw crop bytes, bounds them to the report image
// size, and re-encodes as JPEG for embedding.
func utilsDecodeFit(data []byte) ([]byte, error) {
	img, err := utils.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	img = utils.FitImage(img, cropMaxWidth, cropMaxHeight)
	return utils.EncodeJPEG(img, cropQuality)
}

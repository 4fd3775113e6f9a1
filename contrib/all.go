// Package contrib provides autoflate decoder descriptions for formats
// beyond the DEFLATE family. They are not part of the default detection
// set; append them (or the whole All list) to StreamConfig.Decoders to
// enable them.
package contrib

import (
	"github.com/AdRoll/autoflate"
)

// All is the list of contributed format descriptions.
var All = []autoflate.DecoderDesc{
	LZ4Desc,
	ZstdDesc,
}

// Package all registers every bundled provider.
package all

import (
	_ "github.com/mangashelf/mangashelf/internal/provider/madara"
	_ "github.com/mangashelf/mangashelf/internal/provider/mangadex"
	_ "github.com/mangashelf/mangashelf/internal/provider/mangaplus"
	_ "github.com/mangashelf/mangashelf/internal/provider/webtoon"
)

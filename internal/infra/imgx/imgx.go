// Package imgx 规范化 YouTube 缩略图。
package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器（输入不一定总是 jpeg）
)

// 亮度不超过该值视为黑边（JPEG 有损，纯黑会有轻微噪声）。
const letterboxMaxLuma = 24

// ThumbnailJPEG 规范化缩略图并编码为 JPEG。
//
// YouTube 的 hqdefault/sddefault 是 4:3 画布：16:9 视频会被上下补黑边。
// 规则：
// - 输入允许是 JPEG/PNG
// - 输出固定为 JPEG
// - 画布为 4:3 且上下两条带都接近纯黑：裁切为中间的 16:9 区域
// - 其他情况：保持原尺寸，仅重新编码
func ThumbnailJPEG(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.New("缩略图为空")
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}

	rect := b
	if band, ok := letterboxBand(img); ok {
		rect = band
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// letterboxBand 返回 4:3 画布中间的 16:9 区域；只有上下黑边都成立时 ok=true。
func letterboxBand(img image.Image) (image.Rectangle, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w*3 != h*4 {
		return image.Rectangle{}, false
	}
	bandH := w * 9 / 16
	top := (h - bandH) / 2
	if top <= 0 {
		return image.Rectangle{}, false
	}
	bottom := top + bandH

	if !rowsDark(img, b.Min.Y, b.Min.Y+top) || !rowsDark(img, b.Min.Y+bottom, b.Max.Y) {
		return image.Rectangle{}, false
	}
	return image.Rect(b.Min.X, b.Min.Y+top, b.Max.X, b.Min.Y+bottom), true
}

func rowsDark(img image.Image, y0, y1 int) bool {
	b := img.Bounds()
	// 每隔几个像素采样即可，黑边是整条纯色带。
	const step = 4
	for y := y0; y < y1; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y > letterboxMaxLuma {
				return false
			}
		}
	}
	return true
}

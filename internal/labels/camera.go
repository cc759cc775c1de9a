package labels

import (
	"math"

	"github.com/golang/geo/r3"
)

// Camera 场景相机的最小接口：位置与世界坐标到 NDC 的投影
// Project 的 ok 为 false 表示点在相机后方或裁剪范围外
type Camera interface {
	Position() r3.Vector
	Project(world r3.Vector) (ndcX, ndcY float64, ok bool)
}

// Viewport 画布在页面中的像素矩形
type Viewport struct {
	X, Y, W, H float64
}

// Globe 地球组的世界变换：先绕 Y 轴旋转 RotY（弧度），再平移到 Offset
type Globe struct {
	RotY   float64
	Offset r3.Vector
}

// Apply 局部坐标 -> 世界坐标
func (g Globe) Apply(v r3.Vector) r3.Vector {
	s, c := math.Sincos(g.RotY)
	return r3.Vector{
		X: v.X*c + v.Z*s,
		Y: v.Y,
		Z: -v.X*s + v.Z*c,
	}.Add(g.Offset)
}

// PerspectiveCamera 透视相机（look-at + 垂直视角）
type PerspectiveCamera struct {
	Eye    r3.Vector
	Target r3.Vector
	Up     r3.Vector
	FovY   float64 // 度
	Aspect float64
	Near   float64
	Far    float64 // <= 0 不裁远处
}

// NewOrbitCamera 朝向原点、Y 轴向上的相机
func NewOrbitCamera(eye r3.Vector, fovDeg, aspect float64) PerspectiveCamera {
	return PerspectiveCamera{Eye: eye, Up: r3.Vector{Y: 1}, FovY: fovDeg, Aspect: aspect, Near: 0.01, Far: 1000}
}

func (c PerspectiveCamera) Position() r3.Vector { return c.Eye }

func (c PerspectiveCamera) basis() (s, u, f r3.Vector) {
	f = c.Target.Sub(c.Eye).Normalize()
	up := c.Up
	if up.Norm2() == 0 {
		up = r3.Vector{Y: 1}
	}
	s = f.Cross(up)
	if s.Norm2() < 1e-18 {
		// 视线与 up 平行时换一个参考轴
		s = f.Cross(r3.Vector{Z: 1})
	}
	s = s.Normalize()
	u = s.Cross(f)
	return s, u, f
}

func (c PerspectiveCamera) Project(p r3.Vector) (float64, float64, bool) {
	s, u, f := c.basis()
	d := p.Sub(c.Eye)
	xc, yc, zc := d.Dot(s), d.Dot(u), d.Dot(f)
	near := c.Near
	if near <= 0 {
		near = 1e-6
	}
	if zc <= near || (c.Far > 0 && zc > c.Far) {
		return 0, 0, false
	}
	fov := c.FovY
	if !(fov > 0 && fov < 180) {
		fov = 45
	}
	t := math.Tan(fov * math.Pi / 360)
	aspect := c.Aspect
	if !(aspect > 0) {
		aspect = 1
	}
	return xc / (zc * t * aspect), yc / (zc * t), true
}

// toScreen NDC -> 视口内相对像素坐标（左上为原点，y 向下）
func toScreen(ndcX, ndcY, w, h float64) (float64, float64) {
	return (ndcX*0.5 + 0.5) * w, (-ndcY*0.5 + 0.5) * h
}

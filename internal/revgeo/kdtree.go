package revgeo

import (
	"math"

	"github.com/golang/geo/r3"

	"globe-api/internal/geo"
)

// 文档注释：KD-Tree 最近锚点（单位球三维坐标）
// 背景：PIP 未命中（海上、数据缝隙）时可按需给出“最近的国家”近似答案；
// 在三维单位向量上按弦长剪枝，跨反经线与高纬度不会剪错分支。
// 约束：只支持最近一个点；距离换算为大圆千米。
type kdNode struct {
	v  r3.Vector
	id int
	ax int // 0:x 1:y 2:z
	l  *kdNode
	r  *kdNode
}

type kdItem struct {
	v  r3.Vector
	id int
}

func buildKD(items []kdItem, depth int) *kdNode {
	if len(items) == 0 {
		return nil
	}
	ax := depth % 3
	mid := len(items) / 2
	selectNth(items, mid, ax)
	n := &kdNode{v: items[mid].v, id: items[mid].id, ax: ax}
	n.l = buildKD(items[:mid], depth+1)
	n.r = buildKD(items[mid+1:], depth+1)
	return n
}

// 原地 nth 元素选择
func selectNth(a []kdItem, n, ax int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partition(a, lo, hi, (lo+hi)/2, ax)
		if p == n {
			return
		}
		if n < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func partition(a []kdItem, lo, hi, pivot, ax int) int {
	pv := axis(a[pivot].v, ax)
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if axis(a[j].v, ax) < pv {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

func axis(v r3.Vector, ax int) float64 {
	switch ax {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// nearest 返回最近节点的 id 与弦长；空树返回 -1
func nearest(root *kdNode, q r3.Vector) (int, float64) {
	best, bestD := -1, math.MaxFloat64
	var dfs func(n *kdNode)
	dfs = func(n *kdNode) {
		if n == nil {
			return
		}
		if d := n.v.Sub(q).Norm(); d < bestD {
			best, bestD = n.id, d
		}
		diff := axis(q, n.ax) - axis(n.v, n.ax)
		first, second := n.l, n.r
		if diff > 0 {
			first, second = n.r, n.l
		}
		dfs(first)
		// 分割平面到查询点的距离不小于当前最优时无需遍历另一侧
		if math.Abs(diff) < bestD {
			dfs(second)
		}
	}
	dfs(root)
	return best, bestD
}

// buildAnchorTree 以要素锚点构建最近邻树
func buildAnchorTree(features []Feature) *kdNode {
	items := make([]kdItem, 0, len(features))
	for i := range features {
		a := features[i].Anchor
		if !features[i].Valid() || !geo.ValidLonLat(a[0], a[1]) {
			continue
		}
		items = append(items, kdItem{v: geo.LatLonToVec3(a[0], a[1], 1), id: i})
	}
	return buildKD(items, 0)
}

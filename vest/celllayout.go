// SPDX-License-Identifier: GPL-2.0-only

package vest

// Cell indexes one of the vest's 8 addressable actuators, laid out
// front/back x upper/lower x left/right:
//
//	      FRONT                    BACK
//	  ┌─────┬─────┐          ┌─────┬─────┐
//	  │  2  │  5  │  Upper   │  1  │  6  │
//	  ├─────┼─────┤          ├─────┼─────┤
//	  │  3  │  4  │  Lower   │  0  │  7  │
//	  └─────┴─────┘          └─────┴─────┘
//	    L     R                L     R
type Cell int

const (
	BackLowerLeft Cell = iota
	BackUpperLeft
	FrontUpperLeft
	FrontLowerLeft
	FrontLowerRight
	FrontUpperRight
	BackUpperRight
	BackLowerRight
)

var (
	FrontCells = []int{int(FrontUpperLeft), int(FrontLowerLeft), int(FrontLowerRight), int(FrontUpperRight)}
	BackCells  = []int{int(BackLowerLeft), int(BackUpperLeft), int(BackUpperRight), int(BackLowerRight)}
	AllCells   = []int{0, 1, 2, 3, 4, 5, 6, 7}
	LeftSide   = []int{int(BackLowerLeft), int(BackUpperLeft), int(FrontUpperLeft), int(FrontLowerLeft)}
	RightSide  = []int{int(FrontLowerRight), int(FrontUpperRight), int(BackUpperRight), int(BackLowerRight)}
	UpperCells = []int{int(BackUpperLeft), int(FrontUpperLeft), int(FrontUpperRight), int(BackUpperRight)}
	LowerCells = []int{int(BackLowerLeft), int(FrontLowerLeft), int(FrontLowerRight), int(BackLowerRight)}
)

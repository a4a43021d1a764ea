package pptx

import (
	"fmt"
	"strings"
)

// Fixed XML parts of the output package. The package is generated rather
// than delegated: no Go presentation-writing library exists, so the
// packager owns the container layout (content types, relationships,
// master, layouts, theme) directly.

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// OPC relationship type URIs.
const (
	relTypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relTypeCoreProps      = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	relTypeExtProps       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties"
	relTypeSlideMaster    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster"
	relTypeSlideLayout    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	relTypeSlide          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relTypeTheme          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme"
	relTypeImage          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// Drawing and presentation namespaces, used on every generated part.
const nsDecls = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

const rootRelsXML = xmlHeader +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="` + relTypeOfficeDocument + `" Target="ppt/presentation.xml"/>` +
	`<Relationship Id="rId2" Type="` + relTypeCoreProps + `" Target="docProps/core.xml"/>` +
	`<Relationship Id="rId3" Type="` + relTypeExtProps + `" Target="docProps/app.xml"/>` +
	`</Relationships>`

// Core properties carry no timestamps: identical input must produce an
// identical package.
const corePropsXML = xmlHeader +
	`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
	`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
	`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
	`<dc:creator>md2pptx</dc:creator><cp:lastModifiedBy>md2pptx</cp:lastModifiedBy>` +
	`</cp:coreProperties>`

const appPropsXML = xmlHeader +
	`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties" ` +
	`xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">` +
	`<Application>md2pptx</Application>` +
	`</Properties>`

// contentTypesXML enumerates every part so the container is
// self-describing. mediaExts lists the image extensions present.
func contentTypesXML(slideCount int, mediaExts []string) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	for _, ext := range mediaExts {
		fmt.Fprintf(&b, `<Default Extension="%s" ContentType="image/%s"/>`, ext, ext)
	}
	b.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideLayouts/slideLayout2.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`)
	for i := 1; i <= slideCount; i++ {
		fmt.Fprintf(&b, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i)
	}
	b.WriteString(`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>`)
	b.WriteString(`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>`)
	b.WriteString(`</Types>`)
	return b.String()
}

// presentationXML references the master and every slide in order.
func presentationXML(deck *Deck) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<p:presentation ` + nsDecls + `>`)
	b.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	b.WriteString(`<p:sldIdLst>`)
	for i := range deck.Slides {
		fmt.Fprintf(&b, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, 2+i)
	}
	b.WriteString(`</p:sldIdLst>`)
	fmt.Fprintf(&b, `<p:sldSz cx="%d" cy="%d"/>`, deck.SlideWidth, deck.SlideHeight)
	b.WriteString(`<p:notesSz cx="6858000" cy="9144000"/>`)
	b.WriteString(`</p:presentation>`)
	return b.String()
}

func presentationRelsXML(slideCount int) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	fmt.Fprintf(&b, `<Relationship Id="rId1" Type="%s" Target="slideMasters/slideMaster1.xml"/>`, relTypeSlideMaster)
	for i := 1; i <= slideCount; i++ {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="%s" Target="slides/slide%d.xml"/>`, 1+i, relTypeSlide, i)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

// emptySpTreeHeader is the mandatory group-shape preamble of every spTree.
const emptySpTreeHeader = `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
	`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/>` +
	`<a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`

const slideMasterXML = xmlHeader +
	`<p:sldMaster ` + nsDecls + `>` +
	`<p:cSld><p:spTree>` + emptySpTreeHeader + `</p:spTree></p:cSld>` +
	`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" ` +
	`accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>` +
	`<p:sldLayoutIdLst>` +
	`<p:sldLayoutId id="2147483649" r:id="rId1"/>` +
	`<p:sldLayoutId id="2147483650" r:id="rId2"/>` +
	`</p:sldLayoutIdLst>` +
	`</p:sldMaster>`

const slideMasterRelsXML = xmlHeader +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="` + relTypeSlideLayout + `" Target="../slideLayouts/slideLayout1.xml"/>` +
	`<Relationship Id="rId2" Type="` + relTypeSlideLayout + `" Target="../slideLayouts/slideLayout2.xml"/>` +
	`<Relationship Id="rId3" Type="` + relTypeTheme + `" Target="../theme/theme1.xml"/>` +
	`</Relationships>`

const slideLayoutRelsXML = xmlHeader +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="` + relTypeSlideMaster + `" Target="../slideMasters/slideMaster1.xml"/>` +
	`</Relationships>`

// layoutPlaceholderXML emits one layout placeholder shape.
func layoutPlaceholderXML(id int, name, phAttrs string, frame Rect) string {
	return fmt.Sprintf(`<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/>`+
		`<p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr><p:nvPr><p:ph %s/></p:nvPr></p:nvSpPr>`+
		`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm></p:spPr>`+
		`<p:txBody><a:bodyPr/><a:lstStyle/><a:p><a:endParaRPr/></a:p></p:txBody></p:sp>`,
		id, name, phAttrs, frame.X, frame.Y, frame.W, frame.H)
}

// titleLayoutXML is the title-slide layout (centered title + subtitle).
func titleLayoutXML(set *LayoutSet) string {
	title := set.Title.Placeholders[RoleTitle].Frame
	sub := set.Title.Placeholders[RoleBody].Frame
	return xmlHeader +
		`<p:sldLayout ` + nsDecls + ` type="title" preserve="1"><p:cSld name="Title Slide"><p:spTree>` +
		emptySpTreeHeader +
		layoutPlaceholderXML(2, "Title 1", `type="ctrTitle"`, title) +
		layoutPlaceholderXML(3, "Subtitle 2", `type="subTitle" idx="1"`, sub) +
		`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sldLayout>`
}

// contentLayoutXML is the title-and-content layout.
func contentLayoutXML(set *LayoutSet) string {
	title := set.Content.Placeholders[RoleTitle].Frame
	body := set.Content.Placeholders[RoleBody].Frame
	return xmlHeader +
		`<p:sldLayout ` + nsDecls + ` type="obj" preserve="1"><p:cSld name="Title and Content"><p:spTree>` +
		emptySpTreeHeader +
		layoutPlaceholderXML(2, "Title 1", `type="title"`, title) +
		layoutPlaceholderXML(3, "Content Placeholder 2", `type="body" idx="1"`, body) +
		`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sldLayout>`
}

// builtinThemeXML is a compact Office-compatible theme used when no
// template supplies one.
const builtinThemeXML = xmlHeader +
	`<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="md2pptx">` +
	`<a:themeElements>` +
	`<a:clrScheme name="md2pptx">` +
	`<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1>` +
	`<a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>` +
	`<a:dk2><a:srgbClr val="44546A"/></a:dk2>` +
	`<a:lt2><a:srgbClr val="E7E6E6"/></a:lt2>` +
	`<a:accent1><a:srgbClr val="4472C4"/></a:accent1>` +
	`<a:accent2><a:srgbClr val="ED7D31"/></a:accent2>` +
	`<a:accent3><a:srgbClr val="A5A5A5"/></a:accent3>` +
	`<a:accent4><a:srgbClr val="FFC000"/></a:accent4>` +
	`<a:accent5><a:srgbClr val="5B9BD5"/></a:accent5>` +
	`<a:accent6><a:srgbClr val="70AD47"/></a:accent6>` +
	`<a:hlink><a:srgbClr val="0563C1"/></a:hlink>` +
	`<a:folHlink><a:srgbClr val="954F72"/></a:folHlink>` +
	`</a:clrScheme>` +
	`<a:fontScheme name="md2pptx">` +
	`<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>` +
	`<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>` +
	`</a:fontScheme>` +
	`<a:fmtScheme name="md2pptx">` +
	`<a:fillStyleLst>` +
	`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>` +
	`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>` +
	`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>` +
	`</a:fillStyleLst>` +
	`<a:lnStyleLst>` +
	`<a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>` +
	`<a:ln w="12700"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>` +
	`<a:ln w="19050"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>` +
	`</a:lnStyleLst>` +
	`<a:effectStyleLst>` +
	`<a:effectStyle><a:effectLst/></a:effectStyle>` +
	`<a:effectStyle><a:effectLst/></a:effectStyle>` +
	`<a:effectStyle><a:effectLst/></a:effectStyle>` +
	`</a:effectStyleLst>` +
	`<a:bgFillStyleLst>` +
	`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>` +
	`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>` +
	`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>` +
	`</a:bgFillStyleLst>` +
	`</a:fmtScheme>` +
	`</a:themeElements>` +
	`</a:theme>`

// slideRelsXML links a slide to its layout and embedded images.
// mediaTargets maps rIdN (N >= 2) order to media file names.
func slideRelsXML(layout LayoutKind, mediaTargets []string) string {
	layoutFile := "slideLayout2.xml"
	if layout == LayoutTitle {
		layoutFile = "slideLayout1.xml"
	}
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	fmt.Fprintf(&b, `<Relationship Id="rId1" Type="%s" Target="../slideLayouts/%s"/>`, relTypeSlideLayout, layoutFile)
	for i, target := range mediaTargets {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="%s" Target="../media/%s"/>`, 2+i, relTypeImage, target)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

package registry

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParsePath", func() {
	It("should parse tags and positions", func() {
		path, err := ParsePath("/html/body/section[2]/DIV/tr[4]")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(ElementPath{
			{Tag: "html"}, {Tag: "body"}, {Tag: "section", Index: 2}, {Tag: "div"}, {Tag: "tr", Index: 4},
		}))
	})

	It("should render back to the same path", func() {
		Expect(MustParsePath("/html/body/section[2]/div").String()).To(Equal("/html/body/section[2]/div"))
	})

	DescribeTable("invalid paths",
		func(path string) {
			_, err := ParsePath(path)
			Expect(err).To(HaveOccurred())
		},
		Entry("relative", "html/body"),
		Entry("empty step", "/html//body"),
		Entry("zero position", "/html/body/div[0]"),
		Entry("unterminated position", "/html/body/div[2"),
		Entry("non numeric position", "/html/body/div[x]"),
	)

	It("should panic in MustParsePath on bad input", func() {
		Expect(func() { MustParsePath("nope") }).To(Panic())
	})
})

var _ = Describe("Locate", func() {
	var page string

	BeforeEach(func() {
		page = `<html><body>
			<ul><li>one</li><li>two</li></ul>
			<div><p>skip</p></div>
			<div><span>first span</span><span>second span</span></div>
		</body></html>`
	})

	It("should select by position", func() {
		n, err := Locate(parseDoc(page), MustParsePath("/html/body/ul/li[2]"))
		Expect(err).NotTo(HaveOccurred())
		Expect(Text(n)).To(Equal("two"))
	})

	It("should search every unpositioned sibling in document order", func() {
		n, err := Locate(parseDoc(page), MustParsePath("/html/body/div/span"))
		Expect(err).NotTo(HaveOccurred())
		Expect(Text(n)).To(Equal("first span"))
	})

	It("should return a NotFoundError for a missing element", func() {
		_, err := Locate(parseDoc(page), MustParsePath("/html/body/ul/li[3]"))
		var notFound *NotFoundError
		Expect(errors.As(err, &notFound)).To(BeTrue())
		Expect(notFound.Path).To(Equal("/html/body/ul/li[3]"))
		Expect(err).To(MatchError(ErrElementNotFound))
	})

	It("should see the tbody the parser inserts", func() {
		doc := parseDoc(`<html><body><table><tr><td>a</td></tr><tr><td>b</td></tr></table></body></html>`)
		n, err := Locate(doc, MustParsePath("/html/body/table/tbody/tr[2]/td"))
		Expect(err).NotTo(HaveOccurred())
		Expect(Text(n)).To(Equal("b"))
	})
})

var _ = Describe("FirstText", func() {
	It("should use the first accepted location", func() {
		root := parseDoc(registryPage("가게", "사업자 정보", foodTaxonomy, "주소", foodTaxonomy))
		text, err := FirstText(root, HasAllLabels, taxonomyPaths...)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal(foodTaxonomy))
	})

	It("should fall back when the first location is rejected", func() {
		root := parseDoc(registryPage("가게", "사업자 정보", "업태 : 음식", "주소", foodTaxonomy))
		text, err := FirstText(root, HasAllLabels, taxonomyPaths...)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal(foodTaxonomy))
	})

	It("should fall back when the first location is missing", func() {
		root := parseDoc(`<html><body><p>a</p></body></html>`)
		text, err := FirstText(root, nil, MustParsePath("/html/body/div"), MustParsePath("/html/body/p"))
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("a"))
	})

	It("should report every location tried when none match", func() {
		root := parseDoc(registryPage("가게", "a", "b", "c", "d"))
		_, err := FirstText(root, HasAllLabels, taxonomyPaths...)
		Expect(err).To(MatchError(ErrElementNotFound))
		Expect(err.Error()).To(ContainSubstring("tr[2]/td | "))
	})
})

var _ = Describe("Text", func() {
	It("should turn line breaks and blocks into newlines", func() {
		doc := parseDoc(`<div>대분류 : 음식점업<br>중분류 :   한식<p>소분류 : 한식</p><script>var x;</script></div>`)
		n, err := Locate(doc, MustParsePath("/html/body/div"))
		Expect(err).NotTo(HaveOccurred())
		Expect(Text(n)).To(Equal("대분류 : 음식점업\n중분류 : 한식\n소분류 : 한식"))
	})

	It("should collapse whitespace", func() {
		doc := parseDoc("<span>  a \n\t b  </span>")
		n, err := Locate(doc, MustParsePath("/html/body/span"))
		Expect(err).NotTo(HaveOccurred())
		Expect(Text(n)).To(Equal("a b"))
	})
})
